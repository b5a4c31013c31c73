// Package capture drives one capture cycle against the remote dashboard.
//
// A cycle walks a fixed state machine:
//
//	Unauthenticated -> Navigating -> WaitingForRender -> Extracting -> Persisting -> Done
//	      ^                |
//	      +-- AuthRetry ---+   (second credential set, fresh browsing context)
//
// Authentication injects an HTTP Basic header at the transport level and is
// only verified by reaching the display. Navigation is retried under a
// bounded RetryPolicy; when the first credential set never reaches the
// display the browsing context is discarded and the second set is tried.
// Exhausting both, or the render wait timing out, ends the cycle with a
// diagnostic screenshot and no readings.
//
// Extraction never fails the cycle: each point yields an Extraction whose
// error turns into reading.FailureMarker. All readings of a cycle share one
// timestamp and cycle id and are written in one batch, after which rows
// older than the retention window are trimmed.
//
// The browser is reached only through the Browser and Launcher interfaces.
// ChromeLauncher implements them with chromedp.
package capture
