package capture

import (
	"context"
	"time"
)

// RetryPolicy bounds a repeated browser step.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 mean a single try.
	Attempts int

	// Timeout bounds each attempt. Zero leaves attempts bounded only by
	// the caller's context.
	Timeout time.Duration

	// Delay is the pause between attempts.
	Delay time.Duration

	// OnRetry is called before each pause with the failed attempt number.
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds, the attempts run out or ctx is done.
// Attempts are numbered from 1. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = p.try(ctx, attempt, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (p RetryPolicy) try(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if p.Timeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(actx, attempt)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
