package ledger

import (
	"context"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/metrics"
)

// TransitionResult reports what a fired deferred transition did.
type TransitionResult struct {
	Applied          bool
	SupersededReason string
	Entitlement      domain.Entitlement
}

// ApplyDeferredTransition re-verifies the expected state at fire time and
// applies the transition only if no newer event has overridden it. A
// superseded transition is a successful no-op.
func (l *Ledger) ApplyDeferredTransition(ctx context.Context, tr domain.DeferredTransition) (TransitionResult, error) {
	const op = "Ledger.ApplyDeferredTransition"

	logger := l.logger.With("subscription_id", tr.SubscriptionID, "fire_at", tr.FireAt)

	e, err := l.store.GetEntitlementBySubscriptionID(ctx, tr.SubscriptionID)
	if err != nil {
		if domain.IsNotFound(err) {
			metrics.TransitionResult("superseded")
			logger.Info("deferred transition superseded", "reason", domain.SupersededSubscriptionGone)
			return TransitionResult{SupersededReason: domain.SupersededSubscriptionGone}, nil
		}
		return TransitionResult{}, domain.Internal(err, op, "failed to load subscription")
	}

	if reason := tr.CheckSuperseded(e); reason != "" {
		metrics.TransitionResult("superseded")
		logger.Info("deferred transition superseded", "user_id", e.UserID, "reason", reason)
		return TransitionResult{SupersededReason: reason, Entitlement: e}, nil
	}

	e, err = l.patch(ctx, op, e.UserID, domain.EntitlementPatch{
		Plan:            planPtr(tr.NewPlan),
		ClearPlanEndsAt: true,
		ClearCancelAt:   true,
	})
	if err != nil {
		return TransitionResult{}, err
	}

	metrics.TransitionResult("applied")
	logger.Info("deferred transition applied", "user_id", e.UserID, "plan", e.Plan)
	return TransitionResult{Applied: true, Entitlement: e}, nil
}

// CancelFunc cancels a subscription at the payment processor.
type CancelFunc func(ctx context.Context, subscriptionID string) error

// CancelNow cancels the user's subscription immediately and returns them to
// Free. The subscription id is kept until the processor confirms deletion.
func (l *Ledger) CancelNow(ctx context.Context, userID string, cancel CancelFunc) (domain.Entitlement, error) {
	const op = "Ledger.CancelNow"

	e, err := l.GetEntitlement(ctx, userID)
	if err != nil {
		return domain.Entitlement{}, err
	}
	if e.SubscriptionID == "" {
		return domain.Entitlement{}, domain.SubscriptionNotFound(op, userID)
	}
	if e.Plan == domain.PlanFree && e.PlanEndsAt == nil {
		return domain.Entitlement{}, domain.Conflict(op, "Subscription is already canceled.")
	}

	if err := cancel(ctx, e.SubscriptionID); err != nil {
		return domain.Entitlement{}, err
	}

	e, err = l.patch(ctx, op, userID, domain.EntitlementPatch{
		Plan:            planPtr(domain.PlanFree),
		ClearPlanEndsAt: true,
		ClearCancelAt:   true,
	})
	if err != nil {
		return domain.Entitlement{}, err
	}

	l.logger.Info("subscription canceled", "user_id", userID, "subscription_id", e.SubscriptionID)
	return e, nil
}
