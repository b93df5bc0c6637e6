package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job represents a background job.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals until stopped.
type Scheduler struct {
	jobs    map[string]*ScheduledJob
	mu      sync.RWMutex
	wg      sync.WaitGroup
	logger  *slog.Logger
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// ScheduledJob wraps a job with its schedule.
type ScheduledJob struct {
	Job      Job
	Interval time.Duration
}

// NewScheduler creates a scheduler whose runs are bounded by timeout.
func NewScheduler(logger *slog.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    make(map[string]*ScheduledJob),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// AddJob registers a job. Jobs added after Start are not scheduled.
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.Name()] = &ScheduledJob{Job: job, Interval: interval}
}

// Start launches one goroutine per job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	jobs := make([]*ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, scheduled := range jobs {
		s.wg.Add(1)
		go s.runJob(scheduled)
	}

	s.logger.Info("job scheduler started", slog.Int("jobs", len(jobs)))
}

func (s *Scheduler) runJob(scheduled *ScheduledJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(scheduled.Interval)
	defer ticker.Stop()

	s.logger.Info("starting job",
		slog.String("name", scheduled.Job.Name()),
		slog.Duration("interval", scheduled.Interval),
	)

	for {
		select {
		case <-ticker.C:
			s.executeJob(scheduled.Job)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panic", slog.String("name", job.Name()), slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		s.logger.Error("job execution failed",
			slog.String("name", job.Name()),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}
	s.logger.Debug("job completed", slog.String("name", job.Name()), slog.Duration("duration", time.Since(start)))
}

// Stop cancels running jobs and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

// RunOnce executes a registered job immediately.
func (s *Scheduler) RunOnce(ctx context.Context, jobName string) error {
	s.mu.RLock()
	scheduled, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", jobName)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return scheduled.Job.Execute(ctx)
}
