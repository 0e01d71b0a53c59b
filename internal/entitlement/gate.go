// Package entitlement composes the rate limiter, the subscription ledger and
// the quota tracker into one admit/deny decision per privileged action.
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/metrics"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/ratelimit"
)

// Limiter admits calls per (kind, subject).
type Limiter interface {
	Admit(ctx context.Context, kind domain.ActionKind, subject string) (ratelimit.Result, error)
}

// Entitlements reads a user's record; a missing record must come back as Free.
type Entitlements interface {
	GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error)
}

// Quota evaluates monthly usage.
type Quota interface {
	Evaluate(e domain.Entitlement, plan domain.Plan) quota.Check
}

// Gate decides whether a privileged action may run now.
type Gate struct {
	limiter      Limiter
	entitlements Entitlements
	quota        Quota
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate.
func NewGate(limiter Limiter, entitlements Entitlements, q Quota, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		limiter:      limiter,
		entitlements: entitlements,
		quota:        q,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize runs the checks in order (authentication, rate limit, plan
// lookup, feature gating, quota) and stops at the first denial. Denials are
// returned as decisions; an error means a dependency failed and the action
// must not run.
func (g *Gate) Authorize(ctx context.Context, req domain.ActionRequest) (domain.Decision, error) {
	const op = "Gate.Authorize"

	if _, ok := domain.ParseActionKind(string(req.Kind)); !ok {
		return domain.Decision{}, domain.Invalid(op, "unknown action kind")
	}

	d, err := g.authorize(ctx, req)
	if err != nil {
		g.logger.Error("authorization failed", "kind", req.Kind, "user_id", req.UserID, "error", err)
		return domain.Decision{}, err
	}

	metrics.Decision(string(req.Kind), string(d.Outcome))
	if !d.Admitted() {
		g.logger.Info("action denied",
			"kind", req.Kind,
			"user_id", req.UserID,
			"outcome", d.Outcome,
		)
	}
	return d, nil
}

func (g *Gate) authorize(ctx context.Context, req domain.ActionRequest) (domain.Decision, error) {
	if req.UserID == "" {
		return domain.Decision{Outcome: domain.OutcomeNotAuthenticated}, nil
	}

	res, err := g.limiter.Admit(ctx, req.Kind, req.UserID)
	if err != nil {
		return domain.Decision{}, err
	}
	if !res.OK {
		return domain.Decision{Outcome: domain.OutcomeRateLimited, RetryAt: res.RetryAt}, nil
	}

	e, err := g.entitlements.GetEntitlement(ctx, req.UserID)
	if err != nil {
		return domain.Decision{}, err
	}
	now := g.now()
	plan := e.EffectivePlan(now)

	if premium(req) && !e.IsPaidActive(now) {
		return domain.Decision{Outcome: domain.OutcomeSubscriptionRequired, Plan: plan}, nil
	}

	if !req.Kind.Metered() {
		return domain.Decision{Outcome: domain.OutcomeAdmitted, Plan: plan}, nil
	}

	check := g.quota.Evaluate(e, plan)
	d := domain.Decision{Plan: plan, Used: check.Used, Ceiling: check.Ceiling}
	if !check.OK {
		d.Outcome = domain.OutcomeQuotaExceeded
		return d, nil
	}
	d.Outcome = domain.OutcomeAdmitted
	return d, nil
}

// premium reports whether req needs an active paid plan: every thumbnail,
// and audio in any voice but the default.
func premium(req domain.ActionRequest) bool {
	switch req.Kind {
	case domain.ActionThumbnail:
		return true
	case domain.ActionAudio:
		return req.Voice != "" && req.Voice != domain.DefaultVoice
	default:
		return false
	}
}
