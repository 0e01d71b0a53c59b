// Package quota tracks monthly metered actions against plan ceilings.
//
// The check and the increment are separate calls. Usage is recorded only
// after the privileged work succeeded, so concurrent requests may overshoot a
// ceiling by the number of in-flight actions.
//
// The entitlement gate already holds the user's record when it checks quota,
// so it calls Evaluate. CheckAndReserve is the same check for callers that
// start from a user id and load the record themselves.
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/metrics"
)

// Store persists per-user counters.
type Store interface {
	GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error)
	IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error)
	ResetUsage(ctx context.Context, periodStart time.Time) (int64, error)
}

// Check is the result of a quota check.
type Check struct {
	OK      bool
	Plan    domain.Plan
	Used    int
	Ceiling int
}

// Remaining returns the actions left this period.
func (c Check) Remaining() int {
	if c.Used >= c.Ceiling {
		return 0
	}
	return c.Ceiling - c.Used
}

// Tracker evaluates and records monthly usage.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker.
func NewTracker(store Store, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Evaluate checks e against the ceiling of plan without touching the store.
func (t *Tracker) Evaluate(e domain.Entitlement, plan domain.Plan) Check {
	used := e.UsageAt(t.now())
	ceiling := plan.Ceiling()
	return Check{OK: used < ceiling, Plan: plan, Used: used, Ceiling: ceiling}
}

// CheckAndReserve reports whether userID may perform one more metered action
// on plan. A user without a record has used nothing. Nothing is reserved;
// call Record once the action succeeded.
func (t *Tracker) CheckAndReserve(ctx context.Context, userID string, plan domain.Plan) (Check, error) {
	const op = "Tracker.CheckAndReserve"

	e, err := t.store.GetEntitlement(ctx, userID)
	switch {
	case err == nil:
	case domain.IsNotFound(err):
		e = domain.NewEntitlement(userID, t.now())
	default:
		return Check{}, domain.Unavailable(err, op, "failed to read usage")
	}

	return t.Evaluate(e, plan), nil
}

// Record counts one successful action of kind. Unmetered kinds are ignored.
func (t *Tracker) Record(ctx context.Context, userID string, kind domain.ActionKind) (int, error) {
	const op = "Tracker.Record"

	if !kind.Metered() {
		return 0, nil
	}

	n, err := t.store.IncrementUsage(ctx, userID, t.now())
	if err != nil {
		return 0, domain.Internal(err, op, "failed to record usage")
	}

	metrics.QuotaUsageRecorded.WithLabelValues(string(kind)).Inc()
	t.logger.Debug("usage recorded", "user_id", userID, "kind", kind, "used", n)
	return n, nil
}

// ResetPeriod zeroes every counter left over from before the current month.
// Running it again in the same month changes nothing.
func (t *Tracker) ResetPeriod(ctx context.Context) (int64, error) {
	return t.ResetPeriodAt(ctx, domain.PeriodStart(t.now()))
}

// ResetPeriodAt zeroes every counter from a period before periodStart.
func (t *Tracker) ResetPeriodAt(ctx context.Context, periodStart time.Time) (int64, error) {
	const op = "Tracker.ResetPeriod"

	n, err := t.store.ResetUsage(ctx, domain.PeriodStart(periodStart))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to reset usage")
	}

	metrics.UsageResetRows.Add(float64(n))
	t.logger.Info("usage period reset", "period_start", domain.PeriodStart(periodStart), "rows", n)
	return n, nil
}
