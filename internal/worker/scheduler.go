package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/metrics"
)

// Scheduler registers deferred plan transitions as durable jobs that fire at
// or after their FireAt instant. The job payload carries the expected prior
// state so the handler can detect a superseded schedule.
type Scheduler struct {
	queue  Queue
	logger *slog.Logger
}

// NewScheduler creates a Scheduler backed by queue.
func NewScheduler(queue Queue, logger *slog.Logger) *Scheduler {
	return &Scheduler{queue: queue, logger: logger}
}

// ScheduleAt enqueues tr for tr.FireAt. Registering the same transition twice
// yields one job; created reports whether a new job was written.
func (s *Scheduler) ScheduleAt(ctx context.Context, tr domain.DeferredTransition) (bool, error) {
	if tr.SubscriptionID == "" {
		return false, fmt.Errorf("schedule transition: subscription id is required")
	}

	job, created, err := EnqueueJob(ctx, s.queue, JobTypeDeferredTransition, tr,
		WithScheduledAt(tr.FireAt),
		WithDedupeKey(tr.DedupeKey()),
	)
	if err != nil {
		return false, fmt.Errorf("schedule transition: %w", err)
	}

	if created {
		metrics.TransitionResult("scheduled")
		s.logger.Info("deferred transition scheduled",
			"job_id", job.ID,
			"subscription_id", tr.SubscriptionID,
			"fire_at", tr.FireAt,
			"new_plan", tr.NewPlan,
		)
	} else {
		metrics.TransitionResult("deduplicated")
		s.logger.Debug("deferred transition already scheduled",
			"subscription_id", tr.SubscriptionID,
			"dedupe_key", tr.DedupeKey(),
		)
	}

	return created, nil
}
