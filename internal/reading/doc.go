// Package reading is the time-series store of captured tank levels.
//
// Each capture cycle writes one Reading per monitored point, all sharing
// one timestamp and cycle id. Rows are append-only; the only deletion is
// the retention trim that follows every committed batch.
//
// The store answers the two query shapes the trend engine needs:
//   - Latest: the newest reading of every tag, in one statement
//   - Windowed: every reading at or after a cutoff, ordered by tag then time
//
// Snapshot returns both from a single read transaction.
package reading
