package reading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/database"
)

// timeLayout is fixed width and always UTC, so comparing the stored text
// orders rows chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = "id, cycle_id, tag, label, raw_value, captured_at, capacity"

// latestQuery picks the newest row per tag in a single pass. Ties on
// captured_at go to the highest id.
const latestQuery = `
	SELECT ` + selectColumns + ` FROM (
		SELECT ` + selectColumns + `,
			ROW_NUMBER() OVER (PARTITION BY tag ORDER BY captured_at DESC, id DESC) AS rn
		FROM readings
	)
	WHERE rn = 1
	ORDER BY tag`

const windowedQuery = `
	SELECT ` + selectColumns + `
	FROM readings
	WHERE captured_at >= ?
	ORDER BY tag, captured_at, id`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteStore implements Store on the readings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStore: Store ready for use
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InsertBatch writes every reading in one transaction.
//
// Returns ErrEmptyBatch for an empty slice and ErrInvalidReading when any
// row lacks a tag or timestamp; nothing is written in either case.
func (s *SQLiteStore) InsertBatch(ctx context.Context, batch []Reading) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	for i, r := range batch {
		if r.Tag == "" {
			return fmt.Errorf("%w: row %d has no tag", ErrInvalidReading, i)
		}
		if r.CapturedAt.IsZero() {
			return fmt.Errorf("%w: %s has no timestamp", ErrInvalidReading, r.Tag)
		}
	}

	return database.RunInTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO readings (cycle_id, tag, label, raw_value, captured_at, capacity)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range batch {
			if _, err := stmt.ExecContext(ctx,
				r.CycleID, r.Tag, r.Label, r.RawValue, formatTime(r.CapturedAt), r.Capacity,
			); err != nil {
				return fmt.Errorf("inserting reading %s: %w", r.Tag, err)
			}
		}
		return nil
	})
}

// Latest returns the newest reading of every tag.
func (s *SQLiteStore) Latest(ctx context.Context) ([]Reading, error) {
	return queryReadings(ctx, s.db, latestQuery)
}

// Windowed returns readings captured at or after since.
func (s *SQLiteStore) Windowed(ctx context.Context, since time.Time) ([]Reading, error) {
	return queryReadings(ctx, s.db, windowedQuery, formatTime(since))
}

// Trim deletes readings captured at or before olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStore) Trim(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM readings WHERE captured_at <= ?",
		formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("trimming readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting trimmed readings: %w", err)
	}
	return n, nil
}

// snapshotTx is the transaction mode of Snapshot.
var snapshotTx = &sql.TxOptions{ReadOnly: true}

// Snapshot runs both queries inside one read-only transaction so the
// latest rows and the window come from the same committed state.
func (s *SQLiteStore) Snapshot(ctx context.Context, since time.Time) (latest, window []Reading, err error) {
	err = database.RunInTx(ctx, s.db, snapshotTx, func(tx *sql.Tx) error {
		var qerr error
		if latest, qerr = queryReadings(ctx, tx, latestQuery); qerr != nil {
			return qerr
		}
		window, qerr = queryReadings(ctx, tx, windowedQuery, formatTime(since))
		return qerr
	})
	if err != nil {
		return nil, nil, err
	}
	return latest, window, nil
}

func queryReadings(ctx context.Context, q querier, query string, args ...any) ([]Reading, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var capturedAt string
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Tag, &r.Label, &r.RawValue, &capturedAt, &r.Capacity); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		if r.CapturedAt, err = time.Parse(timeLayout, capturedAt); err != nil {
			return nil, fmt.Errorf("parsing captured_at %q: %w", capturedAt, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
