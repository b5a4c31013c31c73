package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the service.
const (
	MeasurementLevel = "tank_level"
	MeasurementCycle = "capture_cycle"
)

// Level is one parsed reading ready to mirror.
type Level struct {
	Tag      string
	Site     string
	Label    string
	Value    float64
	Percent  float64
	Capacity float64
	Band     string
	At       time.Time
}

// Cycle summarises one capture cycle.
type Cycle struct {
	Status   string
	Duration time.Duration
	Readings int
	Failed   int
	At       time.Time
}

// WriteLevel queues one level point, timestamped at the capture time.
// Writes are batched and asynchronous; failures reach the SetOnError
// callback.
func (c *Client) WriteLevel(l Level) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(levelPoint(l))
}

// WriteCycle queues the outcome of a capture cycle.
func (c *Client) WriteCycle(cy Cycle) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(cyclePoint(cy))
}

func levelPoint(l Level) *write.Point {
	tags := map[string]string{"tag": l.Tag}
	if l.Site != "" {
		tags["site"] = l.Site
	}
	return write.NewPoint(
		MeasurementLevel,
		tags,
		map[string]any{
			"value":    l.Value,
			"percent":  l.Percent,
			"capacity": l.Capacity,
			"band":     l.Band,
		},
		l.At,
	)
}

func cyclePoint(cy Cycle) *write.Point {
	return write.NewPoint(
		MeasurementCycle,
		map[string]string{"status": cy.Status},
		map[string]any{
			"duration_seconds": cy.Duration.Seconds(),
			"readings":         int64(cy.Readings),
			"failed":           int64(cy.Failed),
		},
		cy.At,
	)
}
