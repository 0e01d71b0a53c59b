package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/podforge/internal/billing"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ledger"
)

// Ledger is the subset of the subscription ledger used by billing actions.
type Ledger interface {
	GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error)
	RecordCheckout(ctx context.Context, sessionID, userID string, plan domain.Plan) error
	CancelNow(ctx context.Context, userID string, cancel ledger.CancelFunc) (domain.Entitlement, error)
}

// Checkout is a started checkout session.
type Checkout struct {
	SessionID string      `json:"sessionId"`
	URL       string      `json:"url"`
	Plan      domain.Plan `json:"plan"`
}

// BillingService starts checkouts, opens the customer portal and cancels
// subscriptions. Entitlement changes arrive later through webhooks.
type BillingService struct {
	billing billing.Service
	ledger  Ledger
	prices  billing.PriceConfig
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
}

// NewBillingService creates a BillingService. baseURL is the public origin
// used for checkout and portal return links.
func NewBillingService(svc billing.Service, l Ledger, prices billing.PriceConfig, baseURL string, logger *slog.Logger) *BillingService {
	return &BillingService{
		billing: svc,
		ledger:  l,
		prices:  prices,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		logger:  logger,
	}
}

// StartCheckout creates a checkout session for option (e.g. "Pro-annual").
func (s *BillingService) StartCheckout(ctx context.Context, userID, option string) (*Checkout, error) {
	const op = "BillingService.StartCheckout"

	if userID == "" {
		return nil, domain.Unauthorized(op, "Authentication required.")
	}

	priceID, plan, err := s.prices.PriceFor(option)
	if err != nil {
		return nil, err
	}

	e, err := s.ledger.GetEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e.IsPaidActive(s.now()) && e.CancelAt == nil {
		return nil, domain.Conflict(op, "You already have an active subscription. Use the billing portal to change plans.")
	}

	session, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		UserID:     userID,
		CustomerID: e.CustomerID,
		PriceID:    priceID,
		Plan:       plan,
		SuccessURL: s.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/billing",
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "Unable to start checkout. Please try again.")
	}

	if err := s.ledger.RecordCheckout(ctx, session.ID, userID, plan); err != nil {
		return nil, err
	}

	s.logger.Info("checkout started", "user_id", userID, "plan", plan, "session_id", session.ID)
	return &Checkout{SessionID: session.ID, URL: session.URL, Plan: plan}, nil
}

// PortalURL returns a customer portal link for the user.
func (s *BillingService) PortalURL(ctx context.Context, userID string) (string, error) {
	const op = "BillingService.PortalURL"

	e, err := s.ledger.GetEntitlement(ctx, userID)
	if err != nil {
		return "", err
	}
	if e.CustomerID == "" {
		return "", domain.SubscriptionNotFound(op, userID)
	}

	url, err := s.billing.CreatePortalSession(ctx, e.CustomerID, s.baseURL+"/billing")
	if err != nil {
		return "", domain.Unavailable(err, op, "Unable to open the billing portal. Please try again.")
	}
	return url, nil
}

// CancelNow cancels the user's subscription immediately.
func (s *BillingService) CancelNow(ctx context.Context, userID string) (domain.Entitlement, error) {
	const op = "BillingService.CancelNow"

	return s.ledger.CancelNow(ctx, userID, func(ctx context.Context, subscriptionID string) error {
		if err := s.billing.CancelSubscription(ctx, subscriptionID); err != nil {
			return domain.Unavailable(err, op, "Unable to cancel the subscription. Please try again.")
		}
		return nil
	})
}
