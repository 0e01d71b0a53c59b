// Package ledger is the authoritative record of each user's plan, paid term
// and billing identifiers. Every billing-driven mutation goes through it.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Store persists entitlement records and checkout payments.
type Store interface {
	GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error)
	GetEntitlementBySubscriptionID(ctx context.Context, subscriptionID string) (domain.Entitlement, error)
	GetEntitlementByCustomerID(ctx context.Context, customerID string) (domain.Entitlement, error)
	PatchEntitlement(ctx context.Context, userID string, patch domain.EntitlementPatch, now time.Time) (domain.Entitlement, error)

	CreateCheckoutPayment(ctx context.Context, p domain.CheckoutPayment) error
	FulfillCheckoutPayment(ctx context.Context, sessionID, customerID string, at time.Time) (bool, error)
}

// Scheduler registers deferred transitions.
type Scheduler interface {
	ScheduleAt(ctx context.Context, tr domain.DeferredTransition) (bool, error)
}

// Ledger applies billing state transitions.
type Ledger struct {
	store     Store
	scheduler Scheduler
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger.
func New(store Store, scheduler Scheduler, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetEntitlement returns the user's record. A user with no record is on the
// Free plan with no usage.
func (l *Ledger) GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error) {
	const op = "Ledger.GetEntitlement"

	if userID == "" {
		return domain.Entitlement{}, domain.Unauthorized(op, "Authentication required.")
	}

	e, err := l.store.GetEntitlement(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewEntitlement(userID, l.now()), nil
		}
		return domain.Entitlement{}, domain.Unavailable(err, op, "failed to load entitlement")
	}
	return e, nil
}

// resolve finds the record for a subscription, falling back to the customer.
// A record found by customer is re-keyed to subscriptionID by the caller's patch.
func (l *Ledger) resolve(ctx context.Context, op, subscriptionID, customerID string) (domain.Entitlement, error) {
	if subscriptionID != "" {
		e, err := l.store.GetEntitlementBySubscriptionID(ctx, subscriptionID)
		if err == nil {
			return e, nil
		}
		if !domain.IsNotFound(err) {
			return domain.Entitlement{}, domain.Internal(err, op, "failed to look up subscription")
		}
	}

	if customerID != "" {
		e, err := l.store.GetEntitlementByCustomerID(ctx, customerID)
		if err == nil {
			if subscriptionID != "" && e.SubscriptionID != subscriptionID {
				l.logger.Info("re-keying entitlement to new subscription",
					"user_id", e.UserID,
					"old_subscription_id", e.SubscriptionID,
					"subscription_id", subscriptionID,
				)
			}
			return e, nil
		}
		if !domain.IsNotFound(err) {
			return domain.Entitlement{}, domain.Internal(err, op, "failed to look up customer")
		}
	}

	ref := subscriptionID
	if ref == "" {
		ref = customerID
	}
	return domain.Entitlement{}, domain.SubscriptionNotFound(op, ref)
}

func (l *Ledger) patch(ctx context.Context, op, userID string, p domain.EntitlementPatch) (domain.Entitlement, error) {
	e, err := l.store.PatchEntitlement(ctx, userID, p, l.now())
	if err != nil {
		return domain.Entitlement{}, domain.Internal(err, op, "failed to update entitlement")
	}
	return e, nil
}

func planPtr(p domain.Plan) *domain.Plan { return &p }

func strPtr(s string) *string { return &s }
