// Package jobs runs periodic maintenance in the API process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// JobFunc is the function signature for jobs.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entryID  cron.EntryID
	running  sync.Mutex
}

// Scheduler runs registered jobs on cron schedules. A job never overlaps
// with itself; a tick that arrives while the previous run is still going is
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[string]*job
	logger *slog.Logger
	mu     sync.RWMutex

	started bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Register adds a job. schedule accepts five-field cron specs and
// descriptors such as "@hourly" or "@every 10m".
func (s *Scheduler) Register(name, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	entryID, err := s.cron.AddFunc(schedule, func() { s.runJob(j) })
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	j.entryID = entryID
	s.jobs[name] = j

	s.logger.Info("job registered", "name", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops scheduling and waits for running jobs to finish or for ctx to
// end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// Running reports whether Start was called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.runJob(j)
	return nil
}

func (s *Scheduler) runJob(j *job) {
	if !j.running.TryLock() {
		s.logger.Warn("job still running, skipping tick", "name", j.name)
		return
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("job failed", "name", j.name, "duration", duration, "error", err)
		return
	}
	s.logger.Debug("job completed", "name", j.name, "duration", duration)
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
