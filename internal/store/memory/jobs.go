package memory

import (
	"context"
	"sort"
	"time"

	"github.com/DukeRupert/podforge/internal/worker"
	"github.com/google/uuid"
)

type jobStatus string

const (
	jobPending   jobStatus = "pending"
	jobRunning   jobStatus = "running"
	jobCompleted jobStatus = "completed"
	jobFailed    jobStatus = "failed"
)

type jobRecord struct {
	job       worker.Job
	status    jobStatus
	startedAt time.Time
	lastError string
	createdAt time.Time
}

// Enqueue implements worker.Queue.
func (s *Store) Enqueue(_ context.Context, p worker.EnqueueParams) (worker.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return worker.Job{}, false, err
	}
	if p.DedupeKey != "" {
		if id, ok := s.dedupe[p.DedupeKey]; ok {
			return s.jobs[id].job, false, nil
		}
	}

	job := worker.Job{
		ID:          uuid.New(),
		Type:        p.Type,
		Payload:     append([]byte(nil), p.Payload...),
		Priority:    p.Priority,
		MaxAttempts: p.MaxAttempts,
		DedupeKey:   p.DedupeKey,
		ScheduledAt: p.ScheduledAt,
	}
	s.jobs[job.ID] = &jobRecord{job: job, status: jobPending, createdAt: s.now()}
	if p.DedupeKey != "" {
		s.dedupe[p.DedupeKey] = job.ID
	}
	return job, true, nil
}

// Dequeue implements worker.Queue.
func (s *Store) Dequeue(_ context.Context) (worker.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return worker.Job{}, err
	}
	now := s.now()
	var due []*jobRecord
	for _, r := range s.jobs {
		if r.status == jobPending && !r.job.ScheduledAt.After(now) {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return worker.Job{}, worker.ErrNoJobs
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].job.Priority != due[j].job.Priority {
			return due[i].job.Priority > due[j].job.Priority
		}
		return due[i].job.ScheduledAt.Before(due[j].job.ScheduledAt)
	})

	r := due[0]
	r.status = jobRunning
	r.startedAt = now
	r.job.Attempts++
	return r.job, nil
}

// Complete implements worker.Queue.
func (s *Store) Complete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.jobs[id]; ok {
		r.status = jobCompleted
		r.lastError = ""
	}
	return nil
}

// Fail implements worker.Queue with the same backoff as the SQL queue.
func (s *Store) Fail(_ context.Context, id uuid.UUID, message string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[id]
	if !ok {
		return nil
	}
	r.lastError = message
	if permanent || r.job.Attempts >= r.job.MaxAttempts {
		r.status = jobFailed
		return nil
	}
	r.status = jobPending
	r.job.ScheduledAt = s.now().Add(30 * time.Second << (r.job.Attempts - 1))
	return nil
}

// RecoverStale implements worker.Queue.
func (s *Store) RecoverStale(_ context.Context, threshold time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-threshold)
	var n int64
	for _, r := range s.jobs {
		if r.status == jobRunning && r.startedAt.Before(cutoff) {
			r.status = jobPending
			n++
		}
	}
	return n, nil
}

// JobInfo is a read-only view of a queued job. Tests only.
type JobInfo struct {
	Job       worker.Job
	Status    string
	LastError string
}

// Jobs returns all jobs of jobType ordered by scheduled time.
func (s *Store) Jobs(jobType string) []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []JobInfo
	for _, r := range s.jobs {
		if jobType == "" || r.job.Type == jobType {
			out = append(out, JobInfo{Job: r.job, Status: string(r.status), LastError: r.lastError})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Job.ScheduledAt.Before(out[j].Job.ScheduledAt)
	})
	return out
}
