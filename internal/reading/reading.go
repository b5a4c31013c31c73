package reading

import (
	"context"
	"time"
)

// Raw values stored when no number could be read.
const (
	// FailureMarker is stored when an element could not be located or read.
	FailureMarker = "Error"

	// EmptyMarker is stored when the element was found but showed no text.
	// It also stands in for a point that has no reading yet.
	EmptyMarker = "---"
)

// Reading is one captured value of one monitored point.
//
// Readings are created once per (tag, cycle) and never modified.
type Reading struct {
	// ID is the row id. Among readings of a tag with equal CapturedAt the
	// higher ID is the later insert.
	ID int64 `json:"id"`

	// CycleID groups the readings written by one capture cycle.
	CycleID string `json:"cycle_id"`

	Tag   string `json:"tag"`
	Label string `json:"label"`

	// RawValue is the text exactly as displayed, including units, or one
	// of the markers.
	RawValue string `json:"raw_value"`

	// CapturedAt is shared by every reading of a cycle.
	CapturedAt time.Time `json:"captured_at"`

	// Capacity is the point's capacity at capture time.
	Capacity float64 `json:"capacity"`
}

// Failed reports whether the raw value is the extraction failure marker.
func (r Reading) Failed() bool {
	return r.RawValue == FailureMarker
}

// Store persists and queries readings.
//
// Implementations must be safe for one writer and many concurrent readers,
// and readers must never observe part of a batch.
type Store interface {
	// InsertBatch writes all readings atomically.
	InsertBatch(ctx context.Context, batch []Reading) error

	// Latest returns the newest reading of every tag, ordered by tag.
	Latest(ctx context.Context) ([]Reading, error)

	// Windowed returns readings with CapturedAt >= since, ordered by tag,
	// then time, then insertion order.
	Windowed(ctx context.Context, since time.Time) ([]Reading, error)

	// Trim deletes readings captured at or before olderThan and returns
	// how many were removed.
	Trim(ctx context.Context, olderThan time.Time) (int64, error)

	// Snapshot returns Latest and Windowed(since) from one consistent view.
	Snapshot(ctx context.Context, since time.Time) (latest, window []Reading, err error)
}
