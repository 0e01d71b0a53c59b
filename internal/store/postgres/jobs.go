package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/repository"
	"github.com/DukeRupert/podforge/internal/worker"
	"github.com/google/uuid"
)

func toJob(row repository.Job) worker.Job {
	return worker.Job{
		ID:          row.ID,
		Type:        row.JobType,
		Payload:     row.Payload,
		Priority:    row.Priority,
		Attempts:    row.Attempts,
		MaxAttempts: row.MaxAttempts,
		DedupeKey:   domain.NullStringValue(row.DedupeKey),
		ScheduledAt: row.ScheduledAt,
	}
}

// Enqueue implements worker.Queue. A dedupe conflict returns the existing job.
func (s *Store) Enqueue(ctx context.Context, p worker.EnqueueParams) (worker.Job, bool, error) {
	payload := json.RawMessage(p.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	row, err := s.queries.EnqueueJob(ctx, repository.EnqueueJobParams{
		ID:          uuid.New(),
		JobType:     p.Type,
		Payload:     payload,
		Priority:    p.Priority,
		MaxAttempts: p.MaxAttempts,
		DedupeKey:   domain.ToNullString(p.DedupeKey),
		ScheduledAt: p.ScheduledAt,
	})
	if err == nil {
		return toJob(row), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || p.DedupeKey == "" {
		return worker.Job{}, false, fmt.Errorf("enqueue job: %w", err)
	}

	existing, err := s.queries.GetJobByDedupeKey(ctx, domain.ToNullString(p.DedupeKey))
	if err != nil {
		return worker.Job{}, false, fmt.Errorf("get deduplicated job: %w", err)
	}
	return toJob(existing), false, nil
}

// Dequeue claims the next due job inside a transaction.
func (s *Store) Dequeue(ctx context.Context) (worker.Job, error) {
	var job worker.Job
	err := s.withTx(ctx, func(q *repository.Queries) error {
		row, err := q.DequeueJob(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return worker.ErrNoJobs
			}
			return fmt.Errorf("dequeue job: %w", err)
		}
		if err := q.UpdateJobStarted(ctx, row.ID); err != nil {
			return fmt.Errorf("mark job started: %w", err)
		}
		job = toJob(row)
		job.Attempts++
		return nil
	})
	return job, err
}

// Complete implements worker.Queue.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.UpdateJobCompleted(ctx, id); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

// Fail implements worker.Queue.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, message string, permanent bool) error {
	err := s.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		Permanent:    permanent,
		ErrorMessage: domain.ToNullString(message),
		ID:           id,
	})
	if err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	return nil
}

// RecoverStale implements worker.Queue.
func (s *Store) RecoverStale(ctx context.Context, threshold time.Duration) (int64, error) {
	n, err := s.queries.RecoverStaleJobs(ctx, threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return n, nil
}
