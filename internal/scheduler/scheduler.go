// Package scheduler drives the periodic all-scope sync pass.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/varrock/clogboard/pkg/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler runs a Job at a fixed interval on a cron runner.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	log      logger.Logger
}

// New creates a Scheduler firing every interval.
func New(interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		interval: interval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("scheduler")
	}
	return s
}

// Start schedules the job and begins ticking. The job inherits ctx, so
// canceling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context, job Job) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	}); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}

	s.cron.Start()
	s.log.Info(ctx, "scheduler started", logger.Duration("interval", s.interval))
	return nil
}

// Stop halts the ticker and waits for a running job to finish, up to the
// deadline on ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
