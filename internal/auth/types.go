package auth

import (
	"errors"
	"regexp"
	"slices"
)

// subjectPattern limits token subjects to something safe to log.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{1,64}$`)

// IsValidSubject reports whether s can be used as a token subject.
func IsValidSubject(s string) bool {
	return subjectPattern.MatchString(s)
}

// Role is an authorisation tier.
type Role string

const (
	// RoleViewer reads levels and reports. Reading needs no token unless
	// the API is configured to require one.
	RoleViewer Role = "viewer"

	// RoleOperator may also request a capture and see diagnostics.
	RoleOperator Role = "operator"
)

// ValidRoles lists the roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrForbidden      = errors.New("insufficient permissions")
	ErrSecretTooShort = errors.New("signing secret must be at least 32 characters")
)
