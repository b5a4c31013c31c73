package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/catalog"
	"github.com/tankwatch/tankwatch-core/internal/reading"
)

// Engine defaults.
const (
	DefaultLookback  = 24 * time.Hour
	DefaultSeriesCap = 96
)

// Summary is the trend of one tag over the lookback window.
type Summary struct {
	Tag string `json:"tag"`

	// Delta is last minus first parseable value in the window. Meaningful
	// only when HasDelta.
	Delta    float64 `json:"delta"`
	HasDelta bool    `json:"has_delta"`

	Class Classification `json:"class"`

	// Series holds the most recent parseable values, oldest first, capped
	// at the engine's series limit.
	Series []float64 `json:"series"`
}

// Sparkline computes the geometry of Series in f.
func (s Summary) Sparkline(f Frame) Polyline {
	return Sparkline(s.Series, f)
}

// PointStatus is the latest reading of one point with its trend.
type PointStatus struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
	Site  string `json:"site"`

	// RawValue is reading.EmptyMarker when the point has never been read.
	RawValue   string    `json:"raw_value"`
	CapturedAt time.Time `json:"captured_at,omitzero"`
	HasReading bool      `json:"has_reading"`
	Capacity   float64   `json:"capacity"`

	Level     Level    `json:"level"`
	Trend     Summary  `json:"trend"`
	Sparkline Polyline `json:"sparkline"`
}

// Report is the digest view: every point plus the capture time to show.
type Report struct {
	Points []PointStatus `json:"points"`

	// ReportTime is the newest captured_at among the latest readings.
	ReportTime    time.Time     `json:"report_time,omitzero"`
	HasReportTime bool          `json:"has_report_time"`
	Window        time.Duration `json:"window"`
}

// Options tunes an Engine. Zero values take the defaults.
type Options struct {
	Lookback  time.Duration
	SeriesCap int
	Frame     Frame

	// Now is the clock the lookback window is measured from.
	Now func() time.Time
}

// Engine answers renderer queries from a reading store.
//
// Thread Safety:
//   - Stateless apart from its dependencies; safe for concurrent use.
type Engine struct {
	store   reading.Store
	catalog *catalog.Catalog
	opts    Options
}

// NewEngine creates an engine over store for the points of cat.
func NewEngine(store reading.Store, cat *catalog.Catalog, opts Options) *Engine {
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.SeriesCap <= 0 {
		opts.SeriesCap = DefaultSeriesCap
	}
	if opts.Frame == (Frame{}) {
		opts.Frame = DefaultFrame
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: store, catalog: cat, opts: opts}
}

// LatestWithTrend returns every catalog point, in catalog order, with its
// latest reading and the trend over the configured lookback. Tags present in
// the store but no longer in the catalog follow, sorted by tag.
func (e *Engine) LatestWithTrend(ctx context.Context) ([]PointStatus, error) {
	return e.build(ctx, e.opts.Lookback)
}

// SummaryForReport returns the digest view over window. A non-positive
// window uses the engine lookback.
func (e *Engine) SummaryForReport(ctx context.Context, window time.Duration) (*Report, error) {
	if window <= 0 {
		window = e.opts.Lookback
	}

	points, err := e.build(ctx, window)
	if err != nil {
		return nil, err
	}

	rep := &Report{Points: points, Window: window}
	for _, p := range points {
		if p.HasReading && p.CapturedAt.After(rep.ReportTime) {
			rep.ReportTime = p.CapturedAt
			rep.HasReportTime = true
		}
	}
	return rep, nil
}

func (e *Engine) build(ctx context.Context, window time.Duration) ([]PointStatus, error) {
	latest, rows, err := e.store.Snapshot(ctx, e.opts.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	series := make(map[string][]float64)
	for _, r := range rows {
		if v, ok := ParseLevel(r.RawValue); ok {
			series[r.Tag] = append(series[r.Tag], v)
		}
	}

	latestByTag := make(map[string]reading.Reading, len(latest))
	for _, r := range latest {
		latestByTag[r.Tag] = r
	}

	out := make([]PointStatus, 0, e.catalog.Len())
	for _, p := range e.catalog.Points() {
		st := PointStatus{
			Tag:      p.Tag,
			Label:    p.Label,
			Site:     p.Site,
			RawValue: reading.EmptyMarker,
			Capacity: p.Capacity,
		}
		if r, ok := latestByTag[p.Tag]; ok {
			st.RawValue = r.RawValue
			st.CapturedAt = r.CapturedAt
			st.HasReading = true
			st.Capacity = r.Capacity
			delete(latestByTag, p.Tag)
		}
		out = append(out, e.finish(st, series[p.Tag]))
	}

	// Retired tags keep showing until retention trims them.
	retired := make([]string, 0, len(latestByTag))
	for tag := range latestByTag {
		retired = append(retired, tag)
	}
	sort.Strings(retired)
	for _, tag := range retired {
		r := latestByTag[tag]
		out = append(out, e.finish(PointStatus{
			Tag:        r.Tag,
			Label:      r.Label,
			RawValue:   r.RawValue,
			CapturedAt: r.CapturedAt,
			HasReading: true,
			Capacity:   r.Capacity,
		}, series[tag]))
	}

	return out, nil
}

func (e *Engine) finish(st PointStatus, values []float64) PointStatus {
	delta, ok := Delta(values)
	st.Level = Fill(st.RawValue, st.Capacity)
	st.Trend = Summary{
		Tag:      st.Tag,
		Delta:    delta,
		HasDelta: ok,
		Class:    Classify(delta, ok),
		Series:   Recent(values, e.opts.SeriesCap),
	}
	st.Sparkline = st.Trend.Sparkline(e.opts.Frame)
	return st
}
