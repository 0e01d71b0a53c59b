// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCheckoutSession creates a Stripe Checkout session in subscription
	// mode for the given price. The user id travels in the session metadata.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// GetSubscription retrieves the current state of a Stripe subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionInfo, error)

	// CancelSubscription cancels a subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ProductName returns the display name of a Stripe product.
	ProductName(ctx context.Context, productID string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	UserID     string
	CustomerID string // reused when the user has subscribed before
	PriceID    string
	Plan       domain.Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a created checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionInfo is the subset of a Stripe subscription the ledger needs.
type SubscriptionInfo struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	ProductID        string
	CurrentPeriodEnd time.Time
	CancelAt         *time.Time
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	sc            *client.API
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	return &stripeService{
		sc:            client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": p.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)
	params.AddMetadata("plan", p.Plan.String())
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}

	sess, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := s.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("stripe get subscription: %w", err)
	}
	return subscriptionInfo(sub), nil
}

func (s *stripeService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	_, err := s.sc.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) ProductName(ctx context.Context, productID string) (string, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx

	prod, err := s.sc.Products.Get(productID, params)
	if err != nil {
		return "", fmt.Errorf("stripe get product: %w", err)
	}
	return prod.Name, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return VerifySignature(payload, signature, s.webhookSecret)
}

// VerifySignature checks the Stripe-Signature header against secret and
// decodes the event envelope. Events from other API versions are accepted;
// their data objects are decoded into local structs.
func VerifySignature(payload []byte, signature, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, domain.SignatureInvalid("billing.VerifySignature", err)
	}
	return event, nil
}

func subscriptionInfo(sub *stripe.Subscription) SubscriptionInfo {
	info := SubscriptionInfo{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		info.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	switch {
	case sub.CancelAt > 0:
		t := time.Unix(sub.CancelAt, 0).UTC()
		info.CancelAt = &t
	case sub.CancelAtPeriodEnd && !info.CurrentPeriodEnd.IsZero():
		t := info.CurrentPeriodEnd
		info.CancelAt = &t
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil || item.Price.ID == "" {
				continue
			}
			info.PriceID = item.Price.ID
			if item.Price.Product != nil {
				info.ProductID = item.Price.Product.ID
			}
			break
		}
	}
	return info
}
