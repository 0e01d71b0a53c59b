package ledger

import (
	"context"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Checkout is a completed checkout session.
type Checkout struct {
	SessionID      string
	UserID         string
	CustomerID     string
	SubscriptionID string
	Plan           domain.Plan
	PlanEndsAt     time.Time
}

// InvoicePayment is a paid renewal invoice.
type InvoicePayment struct {
	SubscriptionID string
	CustomerID     string
	Plan           domain.Plan // empty when unknown
	PeriodEnd      time.Time
}

// SubscriptionChange is the current state of a subscription after an update.
type SubscriptionChange struct {
	SubscriptionID string
	CustomerID     string
	Plan           domain.Plan // empty when unknown
	PlanEndsAt     time.Time
	CancelAt       *time.Time
}

// SubscriptionEnd is a subscription that no longer exists at the processor.
type SubscriptionEnd struct {
	SubscriptionID string
	CustomerID     string
}

// RecordCheckout stores a pending checkout payment keyed by session id.
func (l *Ledger) RecordCheckout(ctx context.Context, sessionID, userID string, plan domain.Plan) error {
	const op = "Ledger.RecordCheckout"

	err := l.store.CreateCheckoutPayment(ctx, domain.CheckoutPayment{
		SessionID: sessionID,
		UserID:    userID,
		Plan:      plan,
		Status:    domain.CheckoutStatusPending,
		CreatedAt: l.now(),
	})
	if err != nil {
		return domain.Internal(err, op, "failed to record checkout")
	}
	return nil
}

// ApplyCheckoutCompleted activates the purchased plan for the user named in
// the session metadata and fulfils the pending payment once.
func (l *Ledger) ApplyCheckoutCompleted(ctx context.Context, c Checkout) (domain.Entitlement, error) {
	const op = "Ledger.ApplyCheckoutCompleted"

	if c.UserID == "" {
		return domain.Entitlement{}, domain.Invalid(op, "checkout session has no user id")
	}
	if !c.Plan.IsPaid() {
		return domain.Entitlement{}, domain.Invalid(op, "checkout session has no paid plan")
	}

	if c.SessionID != "" {
		fulfilled, err := l.store.FulfillCheckoutPayment(ctx, c.SessionID, c.CustomerID, l.now())
		if err != nil {
			return domain.Entitlement{}, domain.Internal(err, op, "failed to fulfil checkout payment")
		}
		if !fulfilled {
			l.logger.Debug("checkout payment already fulfilled or unknown", "session_id", c.SessionID)
		}
	}

	p := domain.EntitlementPatch{
		Plan:           planPtr(c.Plan),
		SubscriptionID: strPtr(c.SubscriptionID),
		CustomerID:     strPtr(c.CustomerID),
		ClearCancelAt:  true,
	}
	if !c.PlanEndsAt.IsZero() {
		p.PlanEndsAt = &c.PlanEndsAt
	}

	e, err := l.patch(ctx, op, c.UserID, p)
	if err != nil {
		return domain.Entitlement{}, err
	}

	l.logger.Info("checkout applied",
		"user_id", e.UserID,
		"plan", e.Plan,
		"subscription_id", e.SubscriptionID,
		"plan_ends_at", e.PlanEndsAt,
	)
	return e, nil
}

// ApplyInvoicePaid extends the paid term to the invoice's period end. The
// term never moves backwards, so a late redelivery of an older invoice is
// harmless.
func (l *Ledger) ApplyInvoicePaid(ctx context.Context, inv InvoicePayment) (domain.Entitlement, error) {
	const op = "Ledger.ApplyInvoicePaid"

	e, err := l.resolve(ctx, op, inv.SubscriptionID, inv.CustomerID)
	if err != nil {
		return domain.Entitlement{}, err
	}

	p := domain.EntitlementPatch{}
	if inv.SubscriptionID != "" {
		p.SubscriptionID = strPtr(inv.SubscriptionID)
	}
	if inv.Plan.IsPaid() {
		p.Plan = planPtr(inv.Plan)
	}
	if !inv.PeriodEnd.IsZero() && (e.PlanEndsAt == nil || inv.PeriodEnd.After(*e.PlanEndsAt)) {
		p.PlanEndsAt = &inv.PeriodEnd
	}

	e, err = l.patch(ctx, op, e.UserID, p)
	if err != nil {
		return domain.Entitlement{}, err
	}

	l.logger.Info("invoice applied",
		"user_id", e.UserID,
		"subscription_id", e.SubscriptionID,
		"plan_ends_at", e.PlanEndsAt,
	)
	return e, nil
}

// ApplySubscriptionUpdated writes the subscription's current term. A scheduled
// cancellation is recorded and registered as a deferred downgrade; the plan
// itself stays untouched until the transition fires.
func (l *Ledger) ApplySubscriptionUpdated(ctx context.Context, ch SubscriptionChange) (domain.Entitlement, error) {
	const op = "Ledger.ApplySubscriptionUpdated"

	e, err := l.resolve(ctx, op, ch.SubscriptionID, ch.CustomerID)
	if err != nil {
		return domain.Entitlement{}, err
	}

	p := domain.EntitlementPatch{SubscriptionID: strPtr(ch.SubscriptionID)}
	if ch.Plan.IsPaid() {
		p.Plan = planPtr(ch.Plan)
	}
	if !ch.PlanEndsAt.IsZero() {
		p.PlanEndsAt = &ch.PlanEndsAt
	}
	if ch.CancelAt != nil {
		p.CancelAt = ch.CancelAt
	} else {
		p.ClearCancelAt = true
	}

	e, err = l.patch(ctx, op, e.UserID, p)
	if err != nil {
		return domain.Entitlement{}, err
	}

	if ch.CancelAt != nil {
		tr := domain.NewDowngrade(e, *ch.CancelAt)
		if _, err := l.scheduler.ScheduleAt(ctx, tr); err != nil {
			return domain.Entitlement{}, domain.Internal(err, op, "failed to schedule downgrade")
		}
	}

	l.logger.Info("subscription update applied",
		"user_id", e.UserID,
		"subscription_id", e.SubscriptionID,
		"plan", e.Plan,
		"plan_ends_at", e.PlanEndsAt,
		"cancel_at", e.CancelAt,
	)
	return e, nil
}

// ApplySubscriptionDeleted returns the user to Free immediately. The customer
// id is kept so a later checkout reuses it.
func (l *Ledger) ApplySubscriptionDeleted(ctx context.Context, end SubscriptionEnd) (domain.Entitlement, error) {
	const op = "Ledger.ApplySubscriptionDeleted"

	e, err := l.resolve(ctx, op, end.SubscriptionID, end.CustomerID)
	if err != nil {
		return domain.Entitlement{}, err
	}
	if end.SubscriptionID != "" && e.SubscriptionID != "" && e.SubscriptionID != end.SubscriptionID {
		l.logger.Info("ignoring deletion of a replaced subscription",
			"user_id", e.UserID,
			"subscription_id", end.SubscriptionID,
			"current_subscription_id", e.SubscriptionID,
		)
		return e, nil
	}

	e, err = l.patch(ctx, op, e.UserID, domain.EntitlementPatch{
		Plan:            planPtr(domain.PlanFree),
		SubscriptionID:  strPtr(""),
		ClearPlanEndsAt: true,
		ClearCancelAt:   true,
	})
	if err != nil {
		return domain.Entitlement{}, err
	}

	l.logger.Info("subscription deleted", "user_id", e.UserID, "subscription_id", end.SubscriptionID)
	return e, nil
}
