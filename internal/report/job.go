package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/trend"
)

// Report outcomes.
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
	StatusFailed   = "failed"
)

// Summarizer produces the digest data. trend.Engine implements it.
type Summarizer interface {
	SummaryForReport(ctx context.Context, window time.Duration) (*trend.Report, error)
}

// Job composes and sends one digest per Run.
type Job struct {
	summarizer Summarizer
	mailer     Mailer
	window     time.Duration
	compose    ComposeOptions
	log        *logging.Logger
	clock      func() time.Time

	// OnResult, when set, is called with the outcome status of every Run.
	OnResult func(status string)
}

// NewJob creates a digest job.
func NewJob(s Summarizer, m Mailer, window time.Duration, opts ComposeOptions, log *logging.Logger) *Job {
	if log == nil {
		log = logging.Discard()
	}
	return &Job{
		summarizer: s,
		mailer:     m,
		window:     window,
		compose:    opts,
		log:        log.Component("report"),
		clock:      time.Now,
	}
}

// Run sends the digest. Missing mail configuration is logged and returns
// nil.
func (j *Job) Run(ctx context.Context) error {
	status, err := j.run(ctx)
	if j.OnResult != nil {
		j.OnResult(status)
	}
	return err
}

func (j *Job) run(ctx context.Context) (string, error) {
	rep, err := j.summarizer.SummaryForReport(ctx, j.window)
	if err != nil {
		return StatusFailed, fmt.Errorf("building digest: %w", err)
	}

	opts := j.compose
	opts.Now = j.clock()
	msg, err := Compose(rep, opts)
	if err != nil {
		return StatusFailed, err
	}

	if err := j.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrMailDisabled) {
			j.log.Warn("digest not sent", "reason", err)
			return StatusDisabled, nil
		}
		return StatusFailed, err
	}

	j.log.Info("digest sent", "subject", msg.Subject, "points", len(rep.Points))
	return StatusSent, nil
}
