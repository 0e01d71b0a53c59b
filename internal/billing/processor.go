package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ledger"
	"github.com/DukeRupert/podforge/internal/metrics"
)

// Ledger is the subset of the subscription ledger driven by billing events.
type Ledger interface {
	ApplyCheckoutCompleted(ctx context.Context, c ledger.Checkout) (domain.Entitlement, error)
	ApplyInvoicePaid(ctx context.Context, inv ledger.InvoicePayment) (domain.Entitlement, error)
	ApplySubscriptionUpdated(ctx context.Context, ch ledger.SubscriptionChange) (domain.Entitlement, error)
	ApplySubscriptionDeleted(ctx context.Context, end ledger.SubscriptionEnd) (domain.Entitlement, error)
}

// EventStore is the webhook event log.
type EventStore interface {
	RecordWebhookEvent(ctx context.Context, e domain.WebhookEvent) (domain.WebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, id string, at time.Time) error
	MarkWebhookEventFailed(ctx context.Context, id string, message string) error
}

// SubscriptionGetter fetches a subscription from the payment processor.
type SubscriptionGetter interface {
	GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionInfo, error)
}

// Result is the outcome reported back to the payment processor.
type Result struct {
	Success   bool
	EventID   string
	EventType string
	Duplicate bool
	Err       error
}

// Processor verifies, records and applies billing webhook events.
type Processor struct {
	secret string
	ledger Ledger
	events EventStore
	subs   SubscriptionGetter
	plans  *PlanResolver
	logger *slog.Logger
	now    func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor verifying signatures with secret.
func NewProcessor(secret string, l Ledger, events EventStore, subs SubscriptionGetter, plans *PlanResolver, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		secret: secret,
		ledger: l,
		events: events,
		subs:   subs,
		plans:  plans,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one delivery. It never panics; any failure is reported in
// the Result so the processor can redeliver. An event already processed is
// acknowledged without being applied again.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) (res Result) {
	const op = "Processor.Process"
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing webhook", "event_id", res.EventID, "event_type", res.EventType, "panic", r)
			res = Result{
				EventID:   res.EventID,
				EventType: res.EventType,
				Err:       domain.Internal(fmt.Errorf("panic: %v", r), op, "webhook processing failed"),
			}
			metrics.WebhookProcessed(res.EventType, "failed", time.Since(start))
		}
	}()

	event, err := VerifySignature(payload, signature, p.secret)
	if err != nil {
		p.logger.Warn("webhook signature rejected", "error", err)
		metrics.WebhookProcessed("", "rejected", time.Since(start))
		return Result{Err: err}
	}
	res.EventID = event.ID
	res.EventType = string(event.Type)
	logger := p.logger.With("event_id", res.EventID, "event_type", res.EventType)

	stored, err := p.events.RecordWebhookEvent(ctx, domain.WebhookEvent{
		ID:         event.ID,
		Type:       res.EventType,
		Payload:    payload,
		ReceivedAt: p.now(),
	})
	if err != nil {
		logger.Error("failed to record webhook event", "error", err)
		metrics.WebhookProcessed(res.EventType, "failed", time.Since(start))
		res.Err = domain.Unavailable(err, op, "failed to record event")
		return res
	}
	if stored.Processed() {
		logger.Info("duplicate webhook event skipped", "attempts", stored.Attempts)
		metrics.WebhookProcessed(res.EventType, "duplicate", time.Since(start))
		res.Success = true
		res.Duplicate = true
		return res
	}

	var result string
	evt, err := ParseEvent(event)
	if err == nil {
		result, err = p.apply(ctx, logger, evt)
	}
	if err != nil {
		logger.Error("webhook event failed", "error", err, "attempts", stored.Attempts)
		if markErr := p.events.MarkWebhookEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			logger.Error("failed to record webhook failure", "error", markErr)
		}
		metrics.WebhookProcessed(res.EventType, "failed", time.Since(start))
		res.Err = err
		return res
	}

	if err := p.events.MarkWebhookEventProcessed(ctx, event.ID, p.now()); err != nil {
		logger.Error("failed to mark webhook event processed", "error", err)
	}
	metrics.WebhookProcessed(res.EventType, result, time.Since(start))
	res.Success = true
	return res
}

// apply dispatches a parsed event and returns the metric result label.
func (p *Processor) apply(ctx context.Context, logger *slog.Logger, event Event) (string, error) {
	var err error
	switch e := event.(type) {
	case CheckoutCompleted:
		err = p.checkoutCompleted(ctx, e)
	case InvoicePaid:
		err = p.invoicePaid(ctx, logger, e)
	case SubscriptionUpdated:
		err = p.subscriptionUpdated(ctx, logger, e)
	case SubscriptionDeleted:
		_, err = p.ledger.ApplySubscriptionDeleted(ctx, ledger.SubscriptionEnd{
			SubscriptionID: e.SubscriptionID,
			CustomerID:     e.CustomerID,
		})
	case Ignored:
		if e.Type == EventInvoicePaymentFailed {
			logger.Warn("invoice payment failed", "reason", e.Reason)
		} else {
			logger.Debug("webhook event ignored", "reason", e.Reason)
		}
		return "ignored", nil
	default:
		return "", domain.Internal(fmt.Errorf("unexpected event %T", event), "Processor.apply", "unsupported event")
	}

	if err != nil && domain.IsNotFound(err) {
		logger.Warn("webhook event references unknown subscription", "error", err)
		return "ignored", nil
	}
	if err != nil {
		return "", err
	}
	return "processed", nil
}

func (p *Processor) checkoutCompleted(ctx context.Context, e CheckoutCompleted) error {
	const op = "Processor.checkoutCompleted"

	if e.SubscriptionID == "" {
		return domain.Invalid(op, "checkout session has no subscription")
	}

	info, err := p.subs.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return domain.Unavailable(err, op, "failed to fetch subscription")
	}

	plan, err := p.plans.Resolve(ctx, info.PriceID, info.ProductID)
	if err != nil {
		if !e.PlanHint.IsPaid() {
			return err
		}
		p.logger.Warn("falling back to checkout plan hint", "subscription_id", e.SubscriptionID, "plan", e.PlanHint, "error", err)
		plan = e.PlanHint
	}

	customerID := e.CustomerID
	if customerID == "" {
		customerID = info.CustomerID
	}

	_, err = p.ledger.ApplyCheckoutCompleted(ctx, ledger.Checkout{
		SessionID:      e.SessionID,
		UserID:         e.UserID,
		CustomerID:     customerID,
		SubscriptionID: e.SubscriptionID,
		Plan:           plan,
		PlanEndsAt:     info.CurrentPeriodEnd,
	})
	return err
}

func (p *Processor) invoicePaid(ctx context.Context, logger *slog.Logger, e InvoicePaid) error {
	const op = "Processor.invoicePaid"

	periodEnd := e.PeriodEnd
	priceID, productID := e.PriceID, e.ProductID
	if periodEnd.IsZero() {
		info, err := p.subs.GetSubscription(ctx, e.SubscriptionID)
		if err != nil {
			return domain.Unavailable(err, op, "failed to fetch subscription")
		}
		periodEnd = info.CurrentPeriodEnd
		if priceID == "" {
			priceID, productID = info.PriceID, info.ProductID
		}
	}

	_, err := p.ledger.ApplyInvoicePaid(ctx, ledger.InvoicePayment{
		SubscriptionID: e.SubscriptionID,
		CustomerID:     e.CustomerID,
		Plan:           p.resolveQuietly(ctx, logger, priceID, productID),
		PeriodEnd:      periodEnd,
	})
	return err
}

// subscriptionUpdated applies the subscription's live state rather than the
// event payload, so a late or redelivered update cannot roll back a newer term.
func (p *Processor) subscriptionUpdated(ctx context.Context, logger *slog.Logger, e SubscriptionUpdated) error {
	const op = "Processor.subscriptionUpdated"

	if e.SubscriptionID == "" {
		return domain.Invalid(op, "subscription event has no id")
	}

	info, err := p.subs.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return domain.Unavailable(err, op, "failed to fetch subscription")
	}
	if info.Status != e.Status {
		logger.Info("subscription changed since event was sent", "event_status", e.Status, "status", info.Status)
	}

	customerID := info.CustomerID
	if customerID == "" {
		customerID = e.CustomerID
	}

	if subscriptionEnded(info.Status) {
		_, err = p.ledger.ApplySubscriptionDeleted(ctx, ledger.SubscriptionEnd{
			SubscriptionID: e.SubscriptionID,
			CustomerID:     customerID,
		})
		return err
	}

	_, err = p.ledger.ApplySubscriptionUpdated(ctx, ledger.SubscriptionChange{
		SubscriptionID: e.SubscriptionID,
		CustomerID:     customerID,
		Plan:           p.resolveQuietly(ctx, logger, info.PriceID, info.ProductID),
		PlanEndsAt:     info.CurrentPeriodEnd,
		CancelAt:       info.CancelAt,
	})
	return err
}

// resolveQuietly returns the plan for a price, or "" when it cannot be
// determined; the ledger then keeps the stored plan.
func (p *Processor) resolveQuietly(ctx context.Context, logger *slog.Logger, priceID, productID string) domain.Plan {
	if priceID == "" && productID == "" {
		return ""
	}
	plan, err := p.plans.Resolve(ctx, priceID, productID)
	if err != nil {
		logger.Warn("could not resolve plan for price", "price_id", priceID, "product_id", productID, "error", err)
		return ""
	}
	return plan
}
