// Package api implements the HTTP REST API and WebSocket server for
// Tankwatch Core.
//
// This package provides:
//   - Read endpoints for the renderers: levels with trend, the digest view
//     and the point catalog
//   - Operator endpoints: manual capture trigger and the diagnostic
//     screenshot
//   - A WebSocket hub relaying capture.finished and levels.updated events
//   - Prometheus /metrics and a dependency-aware /health
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/points
//	GET  /api/v1/levels[?site=]
//	GET  /api/v1/report[?window=24h&format=json|text|html]
//	GET  /api/v1/cycles[?limit=]
//	GET  /api/v1/jobs
//	POST /api/v1/auth/ws-ticket
//	POST /api/v1/capture            (operator)
//	GET  /api/v1/debug/screenshot   (operator)
//	GET  /api/v1/ws[?ticket=]
//	GET  /metrics
//
// # Security
//
// Operator endpoints need an HS256 bearer token minted with
// "tankwatch -issue-token". Without security.jwt.secret they answer 503.
// Read endpoints are public unless api.require_token is set, in which case
// a viewer token is needed and WebSocket connections need a ticket.
package api
