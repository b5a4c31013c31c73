package report

import "errors"

var (
	// ErrMailDisabled is returned when the mailer lacks an API key, sender
	// or recipients. The digest is skipped, not failed.
	ErrMailDisabled = errors.New("report: mail delivery not configured")

	// ErrMailRejected is returned when the provider answers with a non-2xx
	// status.
	ErrMailRejected = errors.New("report: mail provider rejected the message")
)
