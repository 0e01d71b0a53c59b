// Package memory is a mutex-guarded, in-process implementation of every store
// interface. It backs tests and single-process development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/google/uuid"
)

// Store holds all state in maps behind a single lock.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	entitlements map[string]*domain.Entitlement
	windows      map[ratelimit.Key]*ratelimit.Window
	jobs         map[uuid.UUID]*jobRecord
	dedupe       map[string]uuid.UUID
	events       map[string]*domain.WebhookEvent
	checkouts    map[string]*domain.CheckoutPayment

	// Injected failures, see FailNext.
	failErr  error
	failLeft int
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to decide which jobs are due.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		entitlements: make(map[string]*domain.Entitlement),
		windows:      make(map[ratelimit.Key]*ratelimit.Window),
		jobs:         make(map[uuid.UUID]*jobRecord),
		dedupe:       make(map[string]uuid.UUID),
		events:       make(map[string]*domain.WebhookEvent),
		checkouts:    make(map[string]*domain.CheckoutPayment),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next n calls that reach the store return err.
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
	s.failLeft = n
}

// injected must be called with mu held for writing.
func (s *Store) injected() error {
	if s.failLeft > 0 {
		s.failLeft--
		return s.failErr
	}
	return nil
}

// Ping satisfies health checks.
func (s *Store) Ping(_ context.Context) error {
	return nil
}
