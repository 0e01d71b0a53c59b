package domain

import (
	"encoding/json"
	"time"
)

// CheckoutStatus is the lifecycle of a checkout payment.
type CheckoutStatus string

const (
	CheckoutStatusCreated   CheckoutStatus = "created"
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusFulfilled CheckoutStatus = "fulfilled"
)

// CheckoutPayment tracks a checkout session from creation to fulfilment.
// SessionID is the idempotency key for fulfilment.
type CheckoutPayment struct {
	SessionID   string
	UserID      string
	Plan        Plan
	Status      CheckoutStatus
	CustomerID  string
	CreatedAt   time.Time
	FulfilledAt *time.Time
}

// WebhookEvent is a verified billing event as stored in the event log.
type WebhookEvent struct {
	ID          string
	Type        string
	Payload     json.RawMessage
	ReceivedAt  time.Time
	ProcessedAt *time.Time
	Error       string
	Attempts    int
}

// Processed returns true once the event has been applied successfully.
func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}
