package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoJobs is returned by Queue.Dequeue when no job is due.
var ErrNoJobs = errors.New("no jobs available")

// Job is a durable unit of background work.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	Priority    int32
	Attempts    int32
	MaxAttempts int32
	DedupeKey   string
	ScheduledAt time.Time
}

// EnqueueParams describes a job to insert.
type EnqueueParams struct {
	Type        string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	DedupeKey   string
	ScheduledAt time.Time
}

// Queue is the durable job store behind the worker.
//
// Enqueue returns created=false, and no error, when a job with the same
// non-empty DedupeKey already exists. Dequeue claims the highest-priority due
// job, marks it running and increments its attempt count.
type Queue interface {
	Enqueue(ctx context.Context, params EnqueueParams) (job Job, created bool, err error)
	Dequeue(ctx context.Context) (Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string, permanent bool) error
	RecoverStale(ctx context.Context, threshold time.Duration) (int64, error)
}
