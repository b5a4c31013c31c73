package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/capture"
	"github.com/tankwatch/tankwatch-core/internal/catalog"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/influxdb"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/mqtt"
	"github.com/tankwatch/tankwatch-core/internal/trend"
)

// WebSocket event types broadcast after each cycle.
const (
	EventLevelsUpdated   = "levels.updated"
	EventCaptureFinished = "capture.finished"
)

// LevelSource yields the current level of every point.
type LevelSource interface {
	LatestWithTrend(ctx context.Context) ([]trend.PointStatus, error)
}

// Publisher is the MQTT side of the fan-out.
type Publisher interface {
	Topics() mqtt.Topics
	PublishRetained(topic string, payload []byte) error
}

// Mirror is the InfluxDB side of the fan-out.
type Mirror interface {
	WriteLevel(l influxdb.Level)
	WriteCycle(c influxdb.Cycle)
}

// Recorder is the Prometheus side of the fan-out.
type Recorder interface {
	CycleFinished(status string, d time.Duration, failedTags []string, trimmed int64, committedAt time.Time)
	SetLevel(tag, site string, value float64)
}

// Broadcaster pushes events to live dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Deps wires the sinks. Only Levels and Logger are required; a nil sink is
// skipped.
type Deps struct {
	Levels  LevelSource
	MQTT    Publisher
	Influx  Mirror
	Metrics Recorder
	Hub     Broadcaster
	Logger  *logging.Logger
}

// CycleStatus is the capture outcome published on MQTT and the WebSocket.
type CycleStatus struct {
	CycleID    string    `json:"cycle_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	CapturedAt time.Time `json:"captured_at,omitzero"`
	DurationMS int64     `json:"duration_ms"`
	Readings   int       `json:"readings"`
	FailedTags []string  `json:"failed_tags"`
	Error      string    `json:"error,omitempty"`
}

// LevelMessage is the retained MQTT payload of one point.
type LevelMessage struct {
	Tag        string               `json:"tag"`
	Label      string               `json:"label"`
	Site       string               `json:"site,omitempty"`
	RawValue   string               `json:"raw_value"`
	Value      *float64             `json:"value"`
	Percent    *float64             `json:"percent"`
	Band       trend.Band           `json:"band"`
	Delta      *float64             `json:"delta"`
	Class      trend.Classification `json:"class"`
	CapturedAt time.Time            `json:"captured_at"`
}

// Fanout distributes the outcome of every capture cycle. It implements
// capture.Observer.
//
// Thread Safety:
//   - Stateless; safe for concurrent use.
type Fanout struct {
	deps Deps
	log  *logging.Logger
}

var _ capture.Observer = (*Fanout)(nil)

// New validates deps and returns a Fanout.
func New(deps Deps) (*Fanout, error) {
	if deps.Levels == nil {
		return nil, errors.New("fanout: level source is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("fanout: logger is required")
	}
	return &Fanout{deps: deps, log: deps.Logger.Component("fanout")}, nil
}

// CycleFinished publishes the cycle status to every sink and, when the cycle
// committed, the refreshed levels. Sink failures are logged and never
// propagate.
func (f *Fanout) CycleFinished(ctx context.Context, res *capture.Result, err error) {
	status := statusOf(res, err)

	if f.deps.Metrics != nil {
		var committedAt time.Time
		if err == nil && res.Committed() {
			committedAt = res.CapturedAt
		}
		f.deps.Metrics.CycleFinished(status.Status, res.Duration, res.Failed, res.Trimmed, committedAt)
	}
	if f.deps.Influx != nil {
		f.deps.Influx.WriteCycle(influxdb.Cycle{
			Status:   status.Status,
			Duration: res.Duration,
			Readings: len(res.Readings),
			Failed:   len(res.Failed),
			At:       res.StartedAt,
		})
	}
	if f.deps.MQTT != nil {
		f.publish(f.deps.MQTT.Topics().CaptureStatus(), status)
	}
	if f.deps.Hub != nil {
		f.deps.Hub.Broadcast(EventCaptureFinished, status)
	}

	if err != nil || !res.Committed() {
		return
	}

	points, lerr := f.deps.Levels.LatestWithTrend(ctx)
	if lerr != nil {
		f.log.Warn("loading levels for fan-out", "cycle_id", res.CycleID, "error", lerr)
		return
	}
	f.Levels(points)
}

// Levels pushes the given point states to every sink. Points without a
// reading are skipped.
func (f *Fanout) Levels(points []trend.PointStatus) {
	published := 0
	for _, p := range points {
		if !p.HasReading {
			continue
		}
		if p.Level.OK {
			if f.deps.Metrics != nil {
				f.deps.Metrics.SetLevel(p.Tag, p.Site, p.Level.Value)
			}
			if f.deps.Influx != nil {
				f.deps.Influx.WriteLevel(influxdb.Level{
					Tag:      p.Tag,
					Site:     p.Site,
					Label:    p.Label,
					Value:    p.Level.Value,
					Percent:  p.Level.Percent,
					Capacity: p.Capacity,
					Band:     string(p.Level.Band),
					At:       p.CapturedAt,
				})
			}
		}
		if f.deps.MQTT != nil {
			slug := catalog.MonitoredPoint{Tag: p.Tag}.Slug()
			if f.publish(f.deps.MQTT.Topics().Level(slug), levelMessage(p)) {
				published++
			}
		}
	}

	if f.deps.Hub != nil {
		f.deps.Hub.Broadcast(EventLevelsUpdated, points)
	}
	f.log.Debug("levels fanned out", "points", len(points), "mqtt_published", published)
}

func (f *Fanout) publish(topic string, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		f.log.Error("encoding mqtt payload", "topic", topic, "error", err)
		return false
	}
	if err := f.deps.MQTT.PublishRetained(topic, payload); err != nil {
		f.log.Warn("mqtt publish failed", "topic", topic, "error", err)
		return false
	}
	return true
}

func statusOf(res *capture.Result, err error) CycleStatus {
	st := CycleStatus{
		CycleID:    res.CycleID,
		Status:     capture.StatusFor(err),
		StartedAt:  res.StartedAt,
		CapturedAt: res.CapturedAt,
		DurationMS: res.Duration.Milliseconds(),
		Readings:   len(res.Readings),
		FailedTags: res.Failed,
	}
	if st.FailedTags == nil {
		st.FailedTags = []string{}
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

func levelMessage(p trend.PointStatus) LevelMessage {
	msg := LevelMessage{
		Tag:        p.Tag,
		Label:      p.Label,
		Site:       p.Site,
		RawValue:   p.RawValue,
		Band:       p.Level.Band,
		Class:      p.Trend.Class,
		CapturedAt: p.CapturedAt,
	}
	if p.Level.OK {
		v, pct := p.Level.Value, p.Level.Percent
		msg.Value, msg.Percent = &v, &pct
	}
	if p.Trend.HasDelta {
		d := p.Trend.Delta
		msg.Delta = &d
	}
	return msg
}
