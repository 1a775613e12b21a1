// Package scheduler runs the ingestion flows on a cron schedule while the
// server is up.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler wraps robfig/cron. Jobs of one cycle run sequentially and a
// cycle is skipped while the previous one is still running.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	jobs   []Job
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New validates spec (standard five-field cron or descriptors such as
// "@every 6h").
func New(spec string, jobs []Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		jobs:   jobs,
		logger: logger.With(zap.String("schedule", spec)),
	}, nil
}

// Start registers the cycle, starts the cron loop and runs one cycle
// immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()

	return nil
}

// Stop stops the cron loop and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs every job in order. A failing job is logged and does not stop
// the ones after it. It reports false when a cycle was already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous cycle still running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("cycle started")
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			s.logger.Info("cycle interrupted", zap.Error(ctx.Err()))
			return true
		}
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
			continue
		}
		s.logger.Info("job finished", zap.String("job", job.Name))
	}
	s.logger.Info("cycle finished")

	return true
}
