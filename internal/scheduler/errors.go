package scheduler

import "errors"

var (
	// ErrJobBusy is returned when a job is triggered while it is running.
	ErrJobBusy = errors.New("scheduler: job already running")

	// ErrUnknownJob is returned when triggering a job that was never added.
	ErrUnknownJob = errors.New("scheduler: unknown job")

	// ErrNotRunning is returned when triggering before Run or after it returned.
	ErrNotRunning = errors.New("scheduler: not running")

	// ErrInvalidSpec is returned for a schedule the cron parser rejects.
	ErrInvalidSpec = errors.New("scheduler: invalid schedule")
)
