package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/trend"
)

type stubSummarizer struct {
	rep    *trend.Report
	err    error
	window time.Duration
}

func (s *stubSummarizer) SummaryForReport(_ context.Context, window time.Duration) (*trend.Report, error) {
	s.window = window
	return s.rep, s.err
}

type stubMailer struct {
	sent []Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestJob_Run(t *testing.T) {
	tests := []struct {
		name       string
		summaryErr error
		mailErr    error
		wantStatus string
		wantErr    bool
	}{
		{"sent", nil, nil, StatusSent, false},
		{"disabled", nil, fmt.Errorf("%w: missing API key", ErrMailDisabled), StatusDisabled, false},
		{"rejected", nil, ErrMailRejected, StatusFailed, true},
		{"store failure", errors.New("db locked"), nil, StatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSummarizer{rep: testReport(), err: tt.summaryErr}
			m := &stubMailer{err: tt.mailErr}

			var status string
			j := NewJob(s, m, 24*time.Hour, ComposeOptions{Title: "Fuel"}, nil)
			j.OnResult = func(st string) { status = st }

			err := j.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if tt.wantStatus == StatusSent && len(m.sent) != 1 {
				t.Errorf("sent %d messages, want 1", len(m.sent))
			}
			if s.window != 24*time.Hour {
				t.Errorf("window = %v, want 24h", s.window)
			}
		})
	}
}
