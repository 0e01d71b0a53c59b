package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

func toWebhookEvent(row repository.WebhookEvent) domain.WebhookEvent {
	return domain.WebhookEvent{
		ID:          row.ID,
		Type:        row.EventType,
		Payload:     row.Payload,
		ReceivedAt:  row.ReceivedAt,
		ProcessedAt: domain.NullTimeValue(row.ProcessedAt),
		Error:       domain.NullStringValue(row.Error),
		Attempts:    int(row.Attempts),
	}
}

// RecordWebhookEvent inserts the event or bumps its attempt count.
func (s *Store) RecordWebhookEvent(ctx context.Context, e domain.WebhookEvent) (domain.WebhookEvent, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	row, err := s.queries.RecordWebhookEvent(ctx, repository.RecordWebhookEventParams{
		ID:         e.ID,
		EventType:  e.Type,
		Payload:    payload,
		ReceivedAt: e.ReceivedAt,
	})
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("record webhook event: %w", err)
	}
	return toWebhookEvent(row), nil
}

// MarkWebhookEventProcessed stamps processed_at and clears any error.
func (s *Store) MarkWebhookEventProcessed(ctx context.Context, id string, at time.Time) error {
	err := s.queries.MarkWebhookEventProcessed(ctx, repository.MarkWebhookEventProcessedParams{
		ID:          id,
		ProcessedAt: sql.NullTime{Time: at, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

// MarkWebhookEventFailed records the last processing error.
func (s *Store) MarkWebhookEventFailed(ctx context.Context, id string, message string) error {
	err := s.queries.MarkWebhookEventFailed(ctx, repository.MarkWebhookEventFailedParams{
		ID:    id,
		Error: domain.ToNullString(message),
	})
	if err != nil {
		return fmt.Errorf("mark webhook event failed: %w", err)
	}
	return nil
}

type checkoutMetadata struct {
	UserID string `json:"userId"`
	Plan   string `json:"plan"`
}

// CreateCheckoutPayment records a checkout session. Existing sessions are kept.
func (s *Store) CreateCheckoutPayment(ctx context.Context, p domain.CheckoutPayment) error {
	meta, err := json.Marshal(checkoutMetadata{UserID: p.UserID, Plan: string(p.Plan)})
	if err != nil {
		return fmt.Errorf("marshal checkout metadata: %w", err)
	}
	err = s.queries.CreateCheckoutPayment(ctx, repository.CreateCheckoutPaymentParams{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Plan:      string(p.Plan),
		Status:    string(p.Status),
		Metadata:  pqtype.NullRawMessage{RawMessage: meta, Valid: true},
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("create checkout payment: %w", err)
	}
	return nil
}

// GetCheckoutPayment returns the payment for sessionID or ENOTFOUND.
func (s *Store) GetCheckoutPayment(ctx context.Context, sessionID string) (domain.CheckoutPayment, error) {
	row, err := s.queries.GetCheckoutPayment(ctx, sessionID)
	if err != nil {
		return domain.CheckoutPayment{}, notFoundOr(err, "postgres.GetCheckoutPayment", "checkout session", sessionID)
	}
	return domain.CheckoutPayment{
		SessionID:   row.SessionID,
		UserID:      row.UserID,
		Plan:        domain.Plan(row.Plan),
		Status:      domain.CheckoutStatus(row.Status),
		CustomerID:  domain.NullStringValue(row.CustomerID),
		CreatedAt:   row.CreatedAt,
		FulfilledAt: domain.NullTimeValue(row.FulfilledAt),
	}, nil
}

// FulfillCheckoutPayment marks the session fulfilled exactly once.
func (s *Store) FulfillCheckoutPayment(ctx context.Context, sessionID, customerID string, at time.Time) (bool, error) {
	n, err := s.queries.FulfillCheckoutPayment(ctx, repository.FulfillCheckoutPaymentParams{
		SessionID:   sessionID,
		CustomerID:  domain.ToNullString(customerID),
		FulfilledAt: sql.NullTime{Time: at, Valid: true},
	})
	if err != nil {
		return false, fmt.Errorf("fulfill checkout payment: %w", err)
	}
	return n > 0, nil
}
