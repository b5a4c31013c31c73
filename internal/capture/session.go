package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tankwatch/tankwatch-core/internal/catalog"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/reading"
)

// screenshotTimeout bounds a diagnostic screenshot.
const screenshotTimeout = 10 * time.Second

// recordTimeout bounds writing the cycle record after the cycle ended.
const recordTimeout = 5 * time.Second

// Config holds the timings and target of a capture session.
type Config struct {
	Target Target

	// Credentials are tried in order, each in a fresh browsing context.
	Credentials []Credential

	// SettleDelay follows the authenticated base-URL load.
	SettleDelay time.Duration

	// Navigation bounds the attempts to reach the display per credential.
	Navigation RetryPolicy

	// RenderTimeout bounds the wait for the first element.
	RenderTimeout time.Duration

	// PostRenderDelay lets the remaining elements fill in after the first.
	PostRenderDelay time.Duration

	// ExtractTimeout bounds each element read.
	ExtractTimeout time.Duration

	// Retention is how long readings are kept; older rows are trimmed
	// after each committed batch.
	Retention time.Duration
}

// Observer is told about every finished cycle. res is never nil; err is the
// error Run returned. ctx expires a few seconds after the call starts, so
// implementations should return promptly.
type Observer interface {
	CycleFinished(ctx context.Context, res *Result, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res *Result, err error)

// CycleFinished calls f.
func (f ObserverFunc) CycleFinished(ctx context.Context, res *Result, err error) {
	f(ctx, res, err)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Catalog  *catalog.Catalog
	Launcher Launcher
	Store    reading.Store

	// Optional collaborators.
	Artifacts *ArtifactStore
	History   History
	Observers []Observer
	Logger    *logging.Logger

	// Location is the timezone captured_at is expressed in. Default UTC.
	Location *time.Location

	// Clock replaces time.Now in tests.
	Clock func() time.Time
}

// Extraction is the outcome of reading one element.
type Extraction struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
	Err   error  `json:"-"`
}

// Result describes one cycle. Fields after CycleID are filled as far as the
// cycle got.
type Result struct {
	CycleID    string        `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	CapturedAt time.Time     `json:"captured_at,omitzero"`
	Duration   time.Duration `json:"duration"`

	// Credential is the 1-based credential set that reached the display.
	Credential int `json:"credential"`

	Extractions []Extraction      `json:"extractions,omitempty"`
	Readings    []reading.Reading `json:"readings,omitempty"`
	Failed      []string          `json:"failed,omitempty"`
	Trimmed     int64             `json:"trimmed"`
}

// Committed reports whether the cycle wrote its batch.
func (r *Result) Committed() bool {
	return len(r.Readings) > 0
}

// Session runs capture cycles. It is created once at startup and reused.
//
// Thread Safety:
//   - Run may be called from several goroutines; at most one cycle runs at
//     a time and overlapping calls fail fast with ErrBusy.
type Session struct {
	cfg  Config
	deps Deps
	log  *logging.Logger

	running sync.Mutex
}

// NewSession validates cfg and deps and returns a ready session.
func NewSession(cfg Config, deps Deps) (*Session, error) {
	var errs []error
	if deps.Catalog == nil || deps.Catalog.Len() == 0 {
		errs = append(errs, errors.New("catalog is required"))
	}
	if deps.Launcher == nil {
		errs = append(errs, errors.New("launcher is required"))
	}
	if deps.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if len(cfg.Credentials) == 0 {
		errs = append(errs, errors.New("at least one credential set is required"))
	}
	if cfg.Target.BaseURL == "" || cfg.Target.DisplayID == "" {
		errs = append(errs, errors.New("target base URL and display id are required"))
	}
	if cfg.RenderTimeout <= 0 || cfg.ExtractTimeout <= 0 {
		errs = append(errs, errors.New("render and extract timeouts must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("capture session: %w", err)
	}

	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Session{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.Component("capture"),
	}, nil
}

// Run performs one capture cycle.
//
// It returns ErrBusy without doing anything if another cycle is running.
// Otherwise the returned Result is never nil, and the error is one of
// ErrBrowserLaunch, ErrAuthExhausted, ErrRenderTimeout, ErrPersist or the
// context error. Per-point extraction failures are not errors; they appear
// in Result.Failed and as reading.FailureMarker rows.
//
// Once extraction has started the cycle finishes and writes its batch even
// if ctx is cancelled; every remaining wait is bounded by ExtractTimeout.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	res := &Result{
		CycleID:   uuid.NewString(),
		StartedAt: s.deps.Clock().In(s.deps.Location),
	}
	log := s.log.With("cycle_id", res.CycleID)
	log.Info("capture cycle starting", "points", s.deps.Catalog.Len())

	err := s.run(ctx, res, log)
	res.Duration = s.deps.Clock().Sub(res.StartedAt)

	if err != nil {
		log.Error("capture cycle failed", "status", StatusFor(err), "credential", res.Credential,
			"duration", res.Duration, "error", err)
	} else {
		log.Info("capture cycle committed", "readings", len(res.Readings), "failed", len(res.Failed),
			"trimmed", res.Trimmed, "credential", res.Credential, "duration", res.Duration)
	}

	s.finish(ctx, res, err, log)
	return res, err
}

func (s *Session) run(ctx context.Context, res *Result, log *logging.Logger) error {
	browser, cred, err := s.open(ctx, res.CycleID, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Warn("closing browser", "error", cerr)
		}
	}()
	res.Credential = cred

	if err := s.awaitRender(ctx, browser); err != nil {
		s.screenshot(browser, ArtifactFailure, res.CycleID, log)
		return err
	}

	if err := sleep(ctx, s.cfg.PostRenderDelay); err != nil {
		return err
	}
	s.screenshot(browser, ArtifactSuccess, res.CycleID, log)

	// Past this point the batch is always completed and written.
	bctx := context.WithoutCancel(ctx)

	res.Extractions = s.extract(bctx, browser, log)
	res.CapturedAt = res.StartedAt.Truncate(time.Second)
	batch := s.batch(res)

	if err := s.deps.Store.InsertBatch(bctx, batch); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	res.Readings = batch

	if s.cfg.Retention > 0 {
		n, err := s.deps.Store.Trim(bctx, res.CapturedAt.Add(-s.cfg.Retention))
		if err != nil {
			// The batch is committed; the next cycle trims again.
			log.Warn("retention trim failed", "error", err)
		}
		res.Trimmed = n
	}
	return nil
}

// open authenticates and navigates, falling back through the credential
// sets. On success the caller owns the returned browser.
func (s *Session) open(ctx context.Context, cycleID string, log *logging.Logger) (Browser, int, error) {
	var lastErr error
	for i, cred := range s.cfg.Credentials {
		n := i + 1
		last := n == len(s.cfg.Credentials)

		browser, err := s.attempt(ctx, cred, last, cycleID, log.With("credential", n))
		if err == nil {
			return browser, n, nil
		}
		if errors.Is(err, ErrBrowserLaunch) {
			return nil, 0, err
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		lastErr = err
		log.Warn("credential set did not reach the display", "credential", n, "user", cred.Username, "error", err)
	}
	return nil, 0, fmt.Errorf("%w: %w", ErrAuthExhausted, lastErr)
}

// attempt launches a fresh browsing context and signs in with one
// credential set. The context is closed on every path except success,
// panics included.
func (s *Session) attempt(ctx context.Context, cred Credential, last bool, cycleID string, log *logging.Logger) (Browser, error) {
	browser, err := s.deps.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserLaunch, err)
	}

	ok := false
	defer func() {
		if ok {
			return
		}
		if cerr := browser.Close(); cerr != nil {
			log.Warn("closing browser", "error", cerr)
		}
	}()

	if err := s.signIn(ctx, browser, cred, log); err != nil {
		if last && ctx.Err() == nil {
			s.screenshot(browser, ArtifactFailure, cycleID, log)
		}
		return nil, err
	}
	ok = true
	return browser, nil
}

// signIn runs Unauthenticated and Navigating for one credential set.
func (s *Session) signIn(ctx context.Context, b Browser, cred Credential, log *logging.Logger) error {
	if err := b.Authorize(ctx, cred.BasicAuth()); err != nil {
		return fmt.Errorf("setting authorization: %w", err)
	}
	if err := s.navigate(ctx, b, s.cfg.Target.BaseURL); err != nil {
		return fmt.Errorf("loading base URL: %w", err)
	}
	if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	policy := s.cfg.Navigation
	policy.OnRetry = func(attempt int, err error) {
		log.Debug("display not reached, forcing route", "attempt", attempt, "error", err)
	}

	target := s.cfg.Target
	return policy.Do(ctx, func(actx context.Context, attempt int) error {
		var err error
		if attempt == 1 {
			err = b.Navigate(actx, target.URL())
		} else {
			err = b.ForceRoute(actx, target.Route())
		}
		if err != nil {
			return err
		}

		loc, err := b.Location(actx)
		if err != nil {
			return fmt.Errorf("reading location: %w", err)
		}
		if !target.Reached(loc) {
			return fmt.Errorf("%w: at %s", ErrNavigation, loc)
		}
		return nil
	})
}

func (s *Session) navigate(ctx context.Context, b Browser, url string) error {
	if s.cfg.Navigation.Timeout <= 0 {
		return b.Navigate(ctx, url)
	}
	nctx, cancel := context.WithTimeout(ctx, s.cfg.Navigation.Timeout)
	defer cancel()
	return b.Navigate(nctx, url)
}

func (s *Session) awaitRender(ctx context.Context, b Browser) error {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	sel := ElementSelector(s.deps.Catalog.First().Tag)
	if err := b.WaitPresent(rctx, sel); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s: %w", ErrRenderTimeout, s.cfg.RenderTimeout, err)
	}
	return nil
}

// extract reads every point independently. A failure is recorded on its
// Extraction and never stops the loop.
func (s *Session) extract(ctx context.Context, b Browser, log *logging.Logger) []Extraction {
	points := s.deps.Catalog.Points()
	out := make([]Extraction, 0, len(points))
	for _, p := range points {
		ex := s.extractOne(ctx, b, p.Tag)
		if ex.Err != nil {
			log.Warn("point extraction failed", "tag", p.Tag, "error", ex.Err)
		}
		out = append(out, ex)
	}
	return out
}

func (s *Session) extractOne(ctx context.Context, b Browser, tag string) Extraction {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	sel := ElementSelector(tag)
	text, err := b.Text(ectx, sel)
	if err != nil {
		return Extraction{Tag: tag, Value: reading.FailureMarker, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		inner, err := b.InnerText(ectx, sel)
		if err != nil {
			return Extraction{Tag: tag, Value: reading.FailureMarker, Err: fmt.Errorf("innerText fallback: %w", err)}
		}
		text = strings.TrimSpace(inner)
	}
	if text == "" {
		text = reading.EmptyMarker
	}
	return Extraction{Tag: tag, Value: text}
}

// batch turns the extractions into readings sharing one timestamp.
func (s *Session) batch(res *Result) []reading.Reading {
	points := s.deps.Catalog.Points()
	batch := make([]reading.Reading, 0, len(points))
	for i, p := range points {
		ex := res.Extractions[i]
		if ex.Err != nil {
			res.Failed = append(res.Failed, p.Tag)
		}
		batch = append(batch, reading.Reading{
			CycleID:    res.CycleID,
			Tag:        p.Tag,
			Label:      p.Label,
			RawValue:   ex.Value,
			CapturedAt: res.CapturedAt,
			Capacity:   p.Capacity,
		})
	}
	return batch
}

func (s *Session) screenshot(b Browser, kind ArtifactKind, cycleID string, log *logging.Logger) {
	if s.deps.Artifacts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), screenshotTimeout)
	defer cancel()

	png, err := b.Screenshot(ctx)
	if err != nil {
		log.Warn("screenshot failed", "kind", kind, "error", err)
		return
	}
	if err := s.deps.Artifacts.Save(kind, cycleID, png, s.deps.Clock()); err != nil {
		log.Warn("saving screenshot", "kind", kind, "error", err)
	}
}

// finish records the outcome and notifies observers.
func (s *Session) finish(ctx context.Context, res *Result, err error, log *logging.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.deps.History != nil {
		rec := CycleRecord{
			CycleID:    res.CycleID,
			StartedAt:  res.StartedAt,
			FinishedAt: res.StartedAt.Add(res.Duration),
			Status:     StatusFor(err),
			Credential: res.Credential,
			Readings:   len(res.Readings),
			FailedTags: res.Failed,
			Trimmed:    res.Trimmed,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if herr := s.deps.History.Record(rctx, rec); herr != nil {
			log.Warn("recording cycle outcome", "error", herr)
		}
	}

	for _, o := range s.deps.Observers {
		o.CycleFinished(rctx, res, err)
	}
}
