// Package scheduler runs the periodic agent-channel digests on a cron
// schedule: the open-ticket backlog plus reminders for tickets that have
// sat Locked too long without a reply.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner for the digest jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cron: cron.New(), logger: logger}
}

// Add registers a job. The schedule is a standard 5-field cron expression
// or a predefined one like "@every 1h".
func (s *Scheduler) Add(name, schedule string, job func()) error {
	_, err := s.cron.AddFunc(schedule, job)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	s.logger.Info("job registered", "job", name, "schedule", schedule)
	return nil
}

// Start begins the scheduler and blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}
