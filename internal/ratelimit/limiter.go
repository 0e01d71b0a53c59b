// Package ratelimit implements the fixed-window limiter that fronts every
// privileged action.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/metrics"
)

// DefaultJitterMax bounds the random delay added to every retry instant.
const DefaultJitterMax = 10 * time.Second

// Key identifies one window.
type Key struct {
	Kind    domain.ActionKind
	Subject string
}

// Window is the stored state of one key.
type Window struct {
	Start time.Time
	Count int
}

// Store persists windows. Admit must be atomic per key: it restarts the
// window when now-Start >= rule.Period, increments Count when Count < rule.Rate,
// and otherwise leaves the window untouched and returns ok=false.
type Store interface {
	Admit(ctx context.Context, key Key, rule Rule, now time.Time) (Window, bool, error)
}

// Result is the outcome of one admission attempt.
type Result struct {
	OK        bool
	Remaining int
	Window    Window
	RetryAt   time.Time // zero when OK
}

// Limiter applies per-kind rules over a Store.
type Limiter struct {
	store     Store
	rules     Rules
	jitterMax time.Duration
	now       func() time.Time
	jitter    func(limit time.Duration) time.Duration
	logger    *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithJitter sets the maximum retry jitter and, optionally, its source.
func WithJitter(limit time.Duration, source func(limit time.Duration) time.Duration) Option {
	return func(l *Limiter) {
		l.jitterMax = limit
		if source != nil {
			l.jitter = source
		}
	}
}

// New creates a Limiter. Kinds missing from rules use DefaultRule.
func New(store Store, rules Rules, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:     store,
		rules:     rules,
		jitterMax: DefaultJitterMax,
		now:       time.Now,
		jitter:    randomJitter,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rule returns the rule applied to kind.
func (l *Limiter) Rule(kind domain.ActionKind) Rule {
	if r, ok := l.rules[kind]; ok {
		return r
	}
	return DefaultRule
}

// Admit counts one call for (kind, subject). The counter only advances on
// admission, so denied calls do not extend the window. A store failure is
// returned as EUNAVAILABLE and must be treated as a denial.
func (l *Limiter) Admit(ctx context.Context, kind domain.ActionKind, subject string) (Result, error) {
	const op = "Limiter.Admit"

	if subject == "" {
		return Result{}, domain.Invalid(op, "rate limit subject is required")
	}

	rule := l.Rule(kind)
	now := l.now()

	window, ok, err := l.store.Admit(ctx, Key{Kind: kind, Subject: subject}, rule, now)
	if err != nil {
		l.logger.Error("rate limit store failed", "kind", kind, "error", err)
		return Result{}, domain.Unavailable(err, op, "rate limiter unavailable")
	}

	if ok {
		return Result{OK: true, Remaining: rule.Rate - window.Count, Window: window}, nil
	}

	retryAt := window.Start.Add(rule.Period)
	if l.jitterMax > 0 {
		retryAt = retryAt.Add(l.jitter(l.jitterMax))
	}

	metrics.RateLimitDenials.WithLabelValues(string(kind)).Inc()
	l.logger.Debug("rate limit exceeded",
		"kind", kind,
		"subject", subject,
		"window_start", window.Start,
		"retry_at", retryAt,
	)

	return Result{OK: false, Window: window, RetryAt: retryAt}, nil
}

func randomJitter(limit time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(limit) + 1))
}
