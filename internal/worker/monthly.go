package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

const monthlyCheckInterval = 1 * time.Hour

// MonthlyTrigger keeps the usage reset job for the current and the next
// calendar month enqueued. The dedupe key makes every tick after the first a
// no-op, and the job itself only touches rows from an earlier period.
type MonthlyTrigger struct {
	queue    Queue
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// TriggerOption configures a MonthlyTrigger.
type TriggerOption func(*MonthlyTrigger)

// WithTriggerClock sets the clock used to pick periods.
func WithTriggerClock(now func() time.Time) TriggerOption {
	return func(m *MonthlyTrigger) { m.now = now }
}

// NewMonthlyTrigger creates a MonthlyTrigger.
func NewMonthlyTrigger(queue Queue, logger *slog.Logger, opts ...TriggerOption) *MonthlyTrigger {
	m := &MonthlyTrigger{
		queue:    queue,
		interval: monthlyCheckInterval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the trigger loop. It blocks until ctx is cancelled.
func (m *MonthlyTrigger) Run(ctx context.Context) {
	m.logger.Info("Monthly usage reset trigger started")
	m.Ensure(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monthly usage reset trigger stopped")
			return
		case <-ticker.C:
			m.Ensure(ctx)
		}
	}
}

// Ensure enqueues the reset jobs for the current and the next period.
func (m *MonthlyTrigger) Ensure(ctx context.Context) {
	now := m.now()
	for _, start := range []time.Time{domain.PeriodStart(now), domain.NextPeriodStart(now)} {
		job, created, err := EnqueueResetUsage(ctx, m.queue, start)
		if err != nil {
			m.logger.Error("Failed to enqueue usage reset", "period_start", start, "error", err)
			continue
		}
		if created {
			m.logger.Info("Usage reset scheduled", "job_id", job.ID, "period_start", start)
		}
	}
}
