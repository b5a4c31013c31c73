// Package auth issues and verifies the API's bearer tokens.
//
// Tokens are HS256 JWTs signed with the configured secret and carry a role:
// viewer (read levels) or operator (also trigger captures and read
// diagnostics). There are no stored accounts; operators mint tokens with
// `tankwatch -issue-token <subject>`.
package auth
