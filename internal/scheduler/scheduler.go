package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
)

// Task is the work a job performs.
type Task func(ctx context.Context) error

// Hooks observe job activity. Either field may be nil.
type Hooks struct {
	// Dropped is called when a trigger is discarded because the job was busy.
	Dropped func(job string)

	// Finished is called after every run.
	Finished func(job string, d time.Duration, err error)
}

// JobStatus is a snapshot of a job for health reporting.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
	NextRun  time.Time `json:"next_run"`
	Runs     int64     `json:"runs"`
	Dropped  int64     `json:"dropped"`
}

type job struct {
	name       string
	spec       string
	schedule   cron.Schedule
	runOnStart bool
	task       Task

	running atomic.Bool
	runs    atomic.Int64
	dropped atomic.Int64

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Scheduler owns the cron and the named jobs.
//
// Thread Safety:
//   - Add must be called before Run.
//   - Trigger and Status are safe from any goroutine.
type Scheduler struct {
	loc   *time.Location
	log   *logging.Logger
	hooks Hooks
	now   func() time.Time

	jobs map[string]*job

	mu  sync.Mutex
	ctx context.Context // set while Run is active
	wg  sync.WaitGroup
}

// New creates a scheduler evaluating schedules in loc (UTC when nil).
func New(loc *time.Location, log *logging.Logger, hooks Hooks) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Scheduler{
		loc:   loc,
		log:   log.Component("scheduler"),
		hooks: hooks,
		now:   time.Now,
		jobs:  make(map[string]*job),
	}
}

// Add registers a job. runOnStart runs it once as soon as Run starts.
func (s *Scheduler) Add(name, spec string, runOnStart bool, task Task) error {
	if name == "" || task == nil {
		return errors.New("scheduler: job name and task are required")
	}
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: job %q already added", name)
	}
	sched, err := cron.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w %q for job %s: %w", ErrInvalidSpec, spec, name, err)
	}
	s.jobs[name] = &job{
		name:       name,
		spec:       spec,
		schedule:   sched,
		runOnStart: runOnStart,
		task:       task,
	}
	return nil
}

// Run starts the cron and blocks until ctx is cancelled, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("scheduler: already running")
	}
	s.ctx = ctx
	s.mu.Unlock()

	c := cron.NewWithLocation(s.loc)
	for _, j := range s.sorted() {
		j := j // per-iteration copy; go.mod targets pre-1.22 loop semantics
		c.Schedule(j.schedule, cron.FuncJob(func() { s.fire(j, "cron") }))
		s.log.Info("job scheduled", "job", j.name, "schedule", j.spec, "next", j.schedule.Next(s.now().In(s.loc)))
	}
	c.Start()

	for _, j := range s.sorted() {
		if j.runOnStart {
			s.fire(j, "startup")
		}
	}

	<-ctx.Done()
	c.Stop()

	s.mu.Lock()
	s.ctx = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// Trigger starts the named job now, outside its schedule. It returns
// without waiting for the job to finish.
func (s *Scheduler) Trigger(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.fire(j, "manual")
}

// fire runs j in its own goroutine unless it is already running.
func (s *Scheduler) fire(j *job, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		return ErrNotRunning
	}

	if !j.running.CompareAndSwap(false, true) {
		j.dropped.Add(1)
		s.log.Warn("trigger dropped, job still running", "job", j.name, "source", source)
		if s.hooks.Dropped != nil {
			s.hooks.Dropped(j.name)
		}
		return ErrJobBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		d, err := s.execute(ctx, j, source)
		j.running.Store(false)
		if s.hooks.Finished != nil {
			s.hooks.Finished(j.name, d, err)
		}
	}()
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j *job, source string) (time.Duration, error) {
	start := s.now()
	s.log.Debug("job starting", "job", j.name, "source", source)

	err := s.safeRun(ctx, j)
	d := s.now().Sub(start)

	j.runs.Add(1)
	j.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		s.log.Warn("job failed", "job", j.name, "source", source, "duration", d, "error", err)
	} else {
		s.log.Debug("job finished", "job", j.name, "source", source, "duration", d)
	}
	return d, err
}

func (s *Scheduler) safeRun(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()
	return j.task(ctx)
}

// Status returns a snapshot of every job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	now := s.now().In(s.loc)
	jobs := s.sorted()
	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:     j.name,
			Schedule: j.spec,
			Running:  j.running.Load(),
			LastRun:  j.lastRun,
			NextRun:  j.schedule.Next(now),
			Runs:     j.runs.Load(),
			Dropped:  j.dropped.Load(),
		}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) sorted() []*job {
	out := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].name < out[b].name })
	return out
}
