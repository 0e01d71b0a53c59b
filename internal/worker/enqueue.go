package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeDeferredTransition = "apply_deferred_transition"
	JobTypeResetUsage         = "reset_usage"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// ResetUsagePayload is the payload for monthly usage reset jobs.
type ResetUsagePayload struct {
	PeriodStart time.Time `json:"period_start"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*EnqueueParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *EnqueueParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *EnqueueParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *EnqueueParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// WithScheduledAt schedules the job to run at or after t.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(p *EnqueueParams) {
		p.ScheduledAt = t
	}
}

// WithDedupeKey makes the enqueue a no-op when a job with the same key exists.
func WithDedupeKey(key string) EnqueueOption {
	return func(p *EnqueueParams) {
		p.DedupeKey = key
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queue Queue,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (Job, bool, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Job{}, false, fmt.Errorf("marshal payload: %w", err)
	}

	policy := PolicyFor(jobType)
	params := EnqueueParams{
		Type:        jobType,
		Payload:     payloadJSON,
		Priority:    policy.Priority,
		MaxAttempts: policy.MaxAttempts,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, created, err := queue.Enqueue(ctx, params)
	if err != nil {
		return Job{}, false, fmt.Errorf("enqueue job: %w", err)
	}

	return job, created, nil
}

// ResetUsageDedupeKey identifies the reset job for the period starting at periodStart.
func ResetUsageDedupeKey(periodStart time.Time) string {
	return fmt.Sprintf("reset_usage:%s", periodStart.UTC().Format("2006-01"))
}

// EnqueueResetUsage enqueues the usage reset for the period starting at
// periodStart, scheduled for that instant. At most one job exists per period.
func EnqueueResetUsage(ctx context.Context, queue Queue, periodStart time.Time, opts ...EnqueueOption) (Job, bool, error) {
	opts = append([]EnqueueOption{
		WithScheduledAt(periodStart),
		WithDedupeKey(ResetUsageDedupeKey(periodStart)),
	}, opts...)

	return EnqueueJob(ctx, queue, JobTypeResetUsage, ResetUsagePayload{PeriodStart: periodStart}, opts...)
}
