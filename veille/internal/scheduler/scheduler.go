// Package scheduler repeats a monitoring run on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one monitoring run.
type Job func(ctx context.Context) error

// Config configures the scheduler.
type Config struct {
	// Interval between the start of two runs. Default: 1 hour.
	Interval time.Duration
	// MaxRuns stops the loop after that many runs. 0 means unbounded.
	MaxRuns int
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// Scheduler runs a Job immediately and then on every tick. Runs never
// overlap: a tick that fires during a run is dropped by the ticker.
type Scheduler struct {
	job    Job
	config Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(job Job, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{job: job, config: cfg, logger: logger}
}

// Run blocks until ctx is cancelled or MaxRuns is reached. It returns the
// number of runs started.
func (s *Scheduler) Run(ctx context.Context) int {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	runs := 0
	for {
		runs++
		s.runOnce(ctx, runs)
		if s.config.MaxRuns > 0 && runs >= s.config.MaxRuns {
			return runs
		}
		select {
		case <-ctx.Done():
			return runs
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return runs
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, n int) {
	start := time.Now()
	s.logger.Info("scheduler: run started", "run", n)
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduler: run failed", "run", n, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduler: run finished", "run", n, "duration", time.Since(start))
}
