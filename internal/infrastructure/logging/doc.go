// Package logging provides structured logging for Tankwatch Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("capture").Info("cycle committed", "cycle_id", id)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log dashboard passwords, the mail API key or operator tokens.
// config.Credential implements fmt.Stringer with the password redacted:
//
//	logger.Info("trying credential", "credential", cred.String())
//
package logging
