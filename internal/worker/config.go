package worker

import (
	"fmt"
	"time"
)

// Config tunes the job worker that fires deferred plan transitions and the
// monthly usage reset.
type Config struct {
	// Concurrency is the number of polling goroutines.
	Concurrency int

	// PollInterval is the idle wait between dequeue attempts. A transition
	// fires at most this long after its scheduled instant.
	PollInterval time.Duration

	// JobTimeout bounds one handler attempt.
	JobTimeout time.Duration

	// ShutdownTimeout bounds how long Start waits for in-flight jobs once
	// its context is canceled.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is how long a job may sit in running before startup
	// recovery returns it to pending.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns the settings used when no environment overrides exist.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate rejects settings the worker cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Concurrency < 1 || c.Concurrency > 100:
		return fmt.Errorf("worker concurrency must be between 1 and 100, got %d", c.Concurrency)
	case c.PollInterval < time.Second:
		return fmt.Errorf("worker poll interval must be at least 1s, got %v", c.PollInterval)
	case c.JobTimeout < time.Second:
		return fmt.Errorf("worker job timeout must be at least 1s, got %v", c.JobTimeout)
	case c.ShutdownTimeout < time.Second:
		return fmt.Errorf("worker shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout)
	case c.StaleJobThreshold < time.Minute:
		return fmt.Errorf("worker stale job threshold must be at least 1m, got %v", c.StaleJobThreshold)
	}
	return nil
}

// Policy is the default priority and attempt budget for a job type.
type Policy struct {
	Priority    int32
	MaxAttempts int32
}

// Plan transitions and usage resets must eventually run, so they outrank
// other work and retry for longer.
var policies = map[string]Policy{
	JobTypeDeferredTransition: {Priority: PriorityHigh, MaxAttempts: 10},
	JobTypeResetUsage:         {Priority: PriorityHigh, MaxAttempts: 10},
}

// PolicyFor returns the policy for jobType. Unlisted types run at normal
// priority with three attempts.
func PolicyFor(jobType string) Policy {
	if p, ok := policies[jobType]; ok {
		return p
	}
	return Policy{Priority: PriorityNormal, MaxAttempts: 3}
}
