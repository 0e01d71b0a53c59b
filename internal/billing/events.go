package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Stripe event types the processor acts on.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentOK     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
)

// Event is a verified billing event. The set of implementations is closed:
// CheckoutCompleted, InvoicePaid, SubscriptionUpdated, SubscriptionDeleted
// and Ignored.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

type envelope struct {
	ID   string
	Type string
}

func (e envelope) EventID() string   { return e.ID }
func (e envelope) EventType() string { return e.Type }
func (envelope) isEvent()            {}

// CheckoutCompleted is a finished subscription checkout.
type CheckoutCompleted struct {
	envelope
	SessionID      string
	UserID         string
	CustomerID     string
	SubscriptionID string
	PlanHint       domain.Plan // from session metadata, may be empty
}

// InvoicePaid is a successful subscription invoice.
type InvoicePaid struct {
	envelope
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
	PriceID        string
	ProductID      string
	PeriodEnd      time.Time // zero when the invoice carries no line period
}

// SubscriptionUpdated is the new state of a subscription.
type SubscriptionUpdated struct {
	envelope
	SubscriptionID string
	CustomerID     string
	Status         string
	PriceID        string
	ProductID      string
	PeriodEnd      time.Time
	CancelAt       *time.Time
}

// subscriptionEnded reports whether a subscription in this status no longer
// pays for a term.
func subscriptionEnded(status string) bool {
	switch stripe.SubscriptionStatus(status) {
	case stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncompleteExpired,
		stripe.SubscriptionStatusUnpaid:
		return true
	}
	return false
}

// SubscriptionDeleted is a subscription that has ended.
type SubscriptionDeleted struct {
	envelope
	SubscriptionID string
	CustomerID     string
}

// Ignored is any event that does not change entitlements.
type Ignored struct {
	envelope
	Reason string
}

// Minimal views of Stripe objects. Only the fields read here are declared so
// payloads from newer API versions still decode.

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type priceObject struct {
	ID      string `json:"id"`
	Product string `json:"product"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
			Price priceObject `json:"price"`
		} `json:"data"`
	} `json:"lines"`
}

type subscriptionObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAt          *int64 `json:"cancel_at"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64       `json:"current_period_end"`
			Price            priceObject `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s subscriptionObject) firstPrice() priceObject {
	for _, item := range s.Items.Data {
		if strings.TrimSpace(item.Price.ID) != "" {
			return item.Price
		}
	}
	return priceObject{}
}

func (s subscriptionObject) periodEnd() int64 {
	if s.CurrentPeriodEnd > 0 {
		return s.CurrentPeriodEnd
	}
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			return item.CurrentPeriodEnd
		}
	}
	return 0
}

// ParseEvent decodes a verified Stripe event into an Event.
func ParseEvent(event stripe.Event) (Event, error) {
	env := envelope{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return nil, domain.Invalid("billing.ParseEvent", "event has no data object")
	}
	raw := event.Data.Raw

	switch env.Type {
	case EventCheckoutCompleted:
		var s checkoutSessionObject
		if err := decode(raw, &s); err != nil {
			return nil, err
		}
		if s.Mode != "" && s.Mode != string(stripe.CheckoutSessionModeSubscription) {
			return Ignored{envelope: env, Reason: "checkout mode " + s.Mode}, nil
		}
		userID := s.Metadata["userId"]
		if userID == "" {
			userID = s.ClientReferenceID
		}
		hint, _ := domain.ParsePlan(s.Metadata["plan"])
		return CheckoutCompleted{
			envelope:       env,
			SessionID:      s.ID,
			UserID:         userID,
			CustomerID:     s.Customer,
			SubscriptionID: s.Subscription,
			PlanHint:       hint,
		}, nil

	case EventInvoicePaid, EventInvoicePaymentOK:
		var inv invoiceObject
		if err := decode(raw, &inv); err != nil {
			return nil, err
		}
		out := InvoicePaid{
			envelope:       env,
			InvoiceID:      inv.ID,
			SubscriptionID: inv.Subscription,
			CustomerID:     inv.Customer,
		}
		if out.SubscriptionID == "" {
			out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription
		}
		for _, line := range inv.Lines.Data {
			if out.PriceID == "" && line.Price.ID != "" {
				out.PriceID = line.Price.ID
				out.ProductID = line.Price.Product
			}
			if line.Period.End > 0 {
				end := time.Unix(line.Period.End, 0).UTC()
				if end.After(out.PeriodEnd) {
					out.PeriodEnd = end
				}
			}
		}
		if out.SubscriptionID == "" {
			return Ignored{envelope: env, Reason: "invoice has no subscription"}, nil
		}
		return out, nil

	case EventSubscriptionUpdated:
		var sub subscriptionObject
		if err := decode(raw, &sub); err != nil {
			return nil, err
		}
		price := sub.firstPrice()
		out := SubscriptionUpdated{
			envelope:       env,
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer,
			Status:         sub.Status,
			PriceID:        price.ID,
			ProductID:      price.Product,
		}
		if end := sub.periodEnd(); end > 0 {
			out.PeriodEnd = time.Unix(end, 0).UTC()
		}
		switch {
		case sub.CancelAt != nil && *sub.CancelAt > 0:
			t := time.Unix(*sub.CancelAt, 0).UTC()
			out.CancelAt = &t
		case sub.CancelAtPeriodEnd && !out.PeriodEnd.IsZero():
			t := out.PeriodEnd
			out.CancelAt = &t
		}
		return out, nil

	case EventSubscriptionDeleted:
		var sub subscriptionObject
		if err := decode(raw, &sub); err != nil {
			return nil, err
		}
		return SubscriptionDeleted{
			envelope:       env,
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer,
		}, nil

	case EventInvoicePaymentFailed:
		return Ignored{envelope: env, Reason: "payment failed; term end governs access"}, nil

	default:
		return Ignored{envelope: env, Reason: "unhandled event type"}, nil
	}
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.Invalid("billing.ParseEvent", fmt.Sprintf("decode event object: %v", err))
	}
	return nil
}
