package capture

import "errors"

var (
	// ErrAuthExhausted is returned when no credential set reached the display.
	ErrAuthExhausted = errors.New("capture: all credential sets failed to reach the display")

	// ErrRenderTimeout is returned when the first monitored element never appeared.
	ErrRenderTimeout = errors.New("capture: display did not render in time")

	// ErrBrowserLaunch is returned when a browsing context could not be started.
	ErrBrowserLaunch = errors.New("capture: browser launch failed")

	// ErrPersist is returned when the batch could not be written.
	ErrPersist = errors.New("capture: persisting readings failed")

	// ErrNavigation is returned by a single navigation attempt that did not
	// land on the display. The session retries it.
	ErrNavigation = errors.New("capture: not on the expected display")

	// ErrBusy is returned when a cycle is requested while one is running.
	ErrBusy = errors.New("capture: a cycle is already running")

	// ErrNoArtifact is returned when no diagnostic screenshot exists yet.
	ErrNoArtifact = errors.New("capture: no screenshot available")
)
