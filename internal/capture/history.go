package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cycle statuses recorded in the history.
const (
	StatusOK            = "ok"
	StatusAuthFailed    = "auth_failed"
	StatusRenderTimeout = "render_timeout"
	StatusLaunchFailed  = "launch_failed"
	StatusStoreFailed   = "store_failed"
	StatusCanceled      = "canceled"
	StatusFailed        = "failed"
)

// StatusFor maps a Run error to its status.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrAuthExhausted):
		return StatusAuthFailed
	case errors.Is(err, ErrRenderTimeout):
		return StatusRenderTimeout
	case errors.Is(err, ErrBrowserLaunch):
		return StatusLaunchFailed
	case errors.Is(err, ErrPersist):
		return StatusStoreFailed
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// CycleRecord is the outcome of one capture cycle.
type CycleRecord struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`

	// Credential is the 1-based credential set that reached the display,
	// or 0 when none did.
	Credential int      `json:"credential"`
	Readings   int      `json:"readings"`
	FailedTags []string `json:"failed_tags"`
	Trimmed    int64    `json:"trimmed"`
	Error      string   `json:"error,omitempty"`
}

// History records cycle outcomes.
type History interface {
	Record(ctx context.Context, rec CycleRecord) error
	Recent(ctx context.Context, limit int) ([]CycleRecord, error)
	LastSuccess(ctx context.Context) (CycleRecord, bool, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// historyTimeLayout is fixed width so started_at sorts as text.
const historyTimeLayout = "2006-01-02T15:04:05.000000000Z"

const cycleColumns = "cycle_id, started_at, finished_at, status, credential, readings, failed_tags, trimmed, error"

// SQLiteHistory implements History on the capture_cycles table.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory creates a history repository over a migrated database.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Record inserts one cycle outcome.
func (h *SQLiteHistory) Record(ctx context.Context, rec CycleRecord) error {
	if rec.CycleID == "" {
		return fmt.Errorf("cycle id is required")
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO capture_cycles (`+cycleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID,
		rec.StartedAt.UTC().Format(historyTimeLayout),
		rec.FinishedAt.UTC().Format(historyTimeLayout),
		rec.Status,
		rec.Credential,
		rec.Readings,
		strings.Join(rec.FailedTags, "\n"),
		rec.Trimmed,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting cycle record: %w", err)
	}
	return nil
}

// Recent returns the latest cycles, newest first (default 50, max 500).
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := h.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM capture_cycles ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycle history: %w", err)
	}
	defer rows.Close()

	records := make([]CycleRecord, 0, limit)
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cycle history: %w", err)
	}
	return records, nil
}

// LastSuccess returns the most recent cycle that committed readings.
func (h *SQLiteHistory) LastSuccess(ctx context.Context) (CycleRecord, bool, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM capture_cycles WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		StatusOK,
	)
	rec, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CycleRecord{}, false, nil
	}
	if err != nil {
		return CycleRecord{}, false, err
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(s scanner) (CycleRecord, error) {
	var rec CycleRecord
	var started, finished, failed string
	err := s.Scan(&rec.CycleID, &started, &finished, &rec.Status, &rec.Credential,
		&rec.Readings, &failed, &rec.Trimmed, &rec.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scanning cycle record: %w", err)
	}
	if rec.StartedAt, err = time.Parse(historyTimeLayout, started); err != nil {
		return rec, fmt.Errorf("parsing started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(historyTimeLayout, finished); err != nil {
		return rec, fmt.Errorf("parsing finished_at: %w", err)
	}
	rec.FailedTags = []string{}
	if failed != "" {
		rec.FailedTags = strings.Split(failed, "\n")
	}
	return rec, nil
}
