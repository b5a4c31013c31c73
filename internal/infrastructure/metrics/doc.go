// Package metrics exposes the service's Prometheus metrics.
//
// Metrics live on a private registry, served by Handler, so tests can build
// as many independent instances as they need.
package metrics
