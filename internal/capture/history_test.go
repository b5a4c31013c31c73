package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/database"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteHistory(db.DB)
}

func TestSQLiteHistory_RecordAndRecent(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := CycleRecord{
			CycleID:    fmt.Sprintf("c%d", i),
			StartedAt:  base.Add(time.Duration(i) * 15 * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*15*time.Minute + 40*time.Second),
			Status:     StatusOK,
			Credential: 1,
			Readings:   11,
		}
		if i == 1 {
			rec.Status = StatusRenderTimeout
			rec.Readings = 0
			rec.Error = "render timeout"
		}
		if i == 2 {
			rec.FailedTags = []string{"A", "B"}
		}
		if err := h.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recent, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d, want 2", len(recent))
	}
	if recent[0].CycleID != "c2" || recent[1].CycleID != "c1" {
		t.Errorf("Recent() order = %s, %s", recent[0].CycleID, recent[1].CycleID)
	}
	if len(recent[0].FailedTags) != 2 || recent[0].FailedTags[1] != "B" {
		t.Errorf("FailedTags = %v", recent[0].FailedTags)
	}
	if len(recent[1].FailedTags) != 0 {
		t.Errorf("FailedTags = %v, want empty", recent[1].FailedTags)
	}
	if !recent[0].StartedAt.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("StartedAt = %v", recent[0].StartedAt)
	}
}

func TestSQLiteHistory_LastSuccess(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	if _, ok, err := h.LastSuccess(ctx); err != nil || ok {
		t.Fatalf("LastSuccess() = %v, %v on empty history", ok, err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_ = h.Record(ctx, CycleRecord{CycleID: "ok", StartedAt: base, FinishedAt: base, Status: StatusOK})
	_ = h.Record(ctx, CycleRecord{CycleID: "bad", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour), Status: StatusAuthFailed})

	rec, ok, err := h.LastSuccess(ctx)
	if err != nil || !ok {
		t.Fatalf("LastSuccess() = %v, %v", ok, err)
	}
	if rec.CycleID != "ok" {
		t.Errorf("LastSuccess() = %s, want ok", rec.CycleID)
	}
}

func TestSQLiteHistory_RequiresCycleID(t *testing.T) {
	h := newTestHistory(t)
	if err := h.Record(context.Background(), CycleRecord{}); err == nil {
		t.Error("Record() error = nil for empty cycle id")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusOK},
		{fmt.Errorf("%w: x", ErrAuthExhausted), StatusAuthFailed},
		{fmt.Errorf("%w: x", ErrRenderTimeout), StatusRenderTimeout},
		{fmt.Errorf("%w: x", ErrBrowserLaunch), StatusLaunchFailed},
		{fmt.Errorf("%w: x", ErrPersist), StatusStoreFailed},
		{context.Canceled, StatusCanceled},
		{errors.New("other"), StatusFailed},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
