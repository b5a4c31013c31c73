package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		started := s.ctx != nil
		s.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not start")
		}
		time.Sleep(time.Millisecond)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Error("Run() did not return after cancel")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func TestAdd_RejectsInvalidSpec(t *testing.T) {
	s := New(nil, nil, Hooks{})
	err := s.Add("capture", "every quarter", false, func(context.Context) error { return nil })
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Add() error = %v, want ErrInvalidSpec", err)
	}
	if err := s.Add("capture", "0 0,15,30,45 * * * *", false, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("capture", "0 * * * * *", false, func(context.Context) error { return nil }); err == nil {
		t.Error("Add() accepted a duplicate job name")
	}
}

func TestTrigger_NotRunning(t *testing.T) {
	s := New(nil, nil, Hooks{})
	_ = s.Add("capture", "0 0 * * * *", false, func(context.Context) error { return nil })

	if err := s.Trigger("capture"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Trigger() error = %v, want ErrNotRunning", err)
	}
	if err := s.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger() error = %v, want ErrUnknownJob", err)
	}
}

func TestTrigger_CoalescesWhileRunning(t *testing.T) {
	var dropped atomic.Int32
	finished := make(chan error, 4)
	s := New(nil, nil, Hooks{
		Dropped:  func(string) { dropped.Add(1) },
		Finished: func(_ string, _ time.Duration, err error) { finished <- err },
	})

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var runs atomic.Int32
	_ = s.Add("capture", "0 0 0 1 1 *", false, func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})
	startScheduler(t, s)

	if err := s.Trigger("capture"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	<-started

	if err := s.Trigger("capture"); !errors.Is(err, ErrJobBusy) {
		t.Errorf("second Trigger() error = %v, want ErrJobBusy", err)
	}
	if dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", dropped.Load())
	}

	close(release)
	if err := <-finished; err != nil {
		t.Errorf("job error = %v", err)
	}

	st := s.Status()
	if len(st) != 1 || st[0].Runs != 1 || st[0].Dropped != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}

	// Free again once the previous run returned.
	if err := s.Trigger("capture"); err != nil {
		t.Errorf("Trigger() after finish error = %v", err)
	}
	<-started
	<-finished
}

func TestRun_RunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(time.UTC, nil, Hooks{})
	_ = s.Add("report", "0 5 4,12,18 * * *", true, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	_ = s.Add("idle", "0 5 4 * * *", false, func(context.Context) error {
		t.Error("job without runOnStart ran at startup")
		return nil
	})
	startScheduler(t, s)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("runOnStart job did not run")
	}
}

func TestRun_CancelReachesJob(t *testing.T) {
	observed := make(chan error, 1)
	s := New(nil, nil, Hooks{})
	_ = s.Add("capture", "0 0 0 1 1 *", true, func(ctx context.Context) error {
		<-ctx.Done()
		observed <- ctx.Err()
		return ctx.Err()
	})
	stop := startScheduler(t, s)
	stop()

	select {
	case err := <-observed:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("job saw %v, want context.Canceled", err)
		}
	default:
		t.Error("Run() returned before the running job finished")
	}
}

func TestJob_RecordsFailureAndPanic(t *testing.T) {
	finished := make(chan error, 2)
	s := New(nil, nil, Hooks{Finished: func(_ string, _ time.Duration, err error) { finished <- err }})
	_ = s.Add("fails", "0 0 0 1 1 *", false, func(context.Context) error { return errors.New("boom") })
	_ = s.Add("panics", "0 0 0 1 1 *", false, func(context.Context) error { panic("bad") })
	startScheduler(t, s)

	_ = s.Trigger("fails")
	if err := <-finished; err == nil || err.Error() != "boom" {
		t.Errorf("fails job error = %v", err)
	}
	_ = s.Trigger("panics")
	if err := <-finished; err == nil {
		t.Error("panicking job reported no error")
	}

	for _, st := range s.Status() {
		if st.LastErr == "" {
			t.Errorf("job %s LastErr empty", st.Name)
		}
	}
}

func TestStatus_NextRunInLocation(t *testing.T) {
	loc := time.FixedZone("WEST", 3600)
	s := New(loc, nil, Hooks{})
	s.now = func() time.Time { return time.Date(2026, 3, 2, 10, 7, 0, 0, loc) }
	_ = s.Add("capture", "0 0,15,30,45 * * * *", false, func(context.Context) error { return nil })

	st := s.Status()
	want := time.Date(2026, 3, 2, 10, 15, 0, 0, loc)
	if !st[0].NextRun.Equal(want) {
		t.Errorf("NextRun = %v, want %v", st[0].NextRun, want)
	}
}
