// Package scheduler runs the watch task on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner invokes a task periodically, starting with one immediate run.
type Runner struct {
	interval time.Duration
	task     func(context.Context)
	logger   *slog.Logger
}

// New creates a Runner. A non-positive interval defaults to 6 hours, which
// matches how often the stocking report is worth re-checking.
func New(interval time.Duration, task func(context.Context), logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{interval: interval, task: task, logger: logger}
}

// Interval reports the effective run interval.
func (r *Runner) Interval() time.Duration { return r.interval }

// Run invokes the task on a ticker. Blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("scheduler: started", "interval", r.interval)

	// Run once immediately on start.
	r.task(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			r.task(ctx)
		}
	}
}
