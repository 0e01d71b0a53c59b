package memory

import (
	"context"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// RecordWebhookEvent stores e on first sight and bumps the attempt count on
// redelivery. The stored row is returned.
func (s *Store) RecordWebhookEvent(_ context.Context, e domain.WebhookEvent) (domain.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return domain.WebhookEvent{}, err
	}
	if existing, ok := s.events[e.ID]; ok {
		existing.Attempts++
		return *existing, nil
	}
	e.Attempts = 1
	stored := e
	s.events[e.ID] = &stored
	return stored, nil
}

// MarkWebhookEventProcessed stamps processed_at and clears any error.
func (s *Store) MarkWebhookEventProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok {
		e.ProcessedAt = &at
		e.Error = ""
	}
	return nil
}

// MarkWebhookEventFailed records the last processing error.
func (s *Store) MarkWebhookEventFailed(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok {
		e.Error = message
	}
	return nil
}

// WebhookEvent returns a stored event. Tests only.
func (s *Store) WebhookEvent(id string) (domain.WebhookEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.events[id]; ok {
		return *e, true
	}
	return domain.WebhookEvent{}, false
}

// CreateCheckoutPayment records a checkout session. Existing sessions are kept.
func (s *Store) CreateCheckoutPayment(_ context.Context, p domain.CheckoutPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return err
	}
	if _, ok := s.checkouts[p.SessionID]; !ok {
		stored := p
		s.checkouts[p.SessionID] = &stored
	}
	return nil
}

// GetCheckoutPayment returns the payment for sessionID or ENOTFOUND.
func (s *Store) GetCheckoutPayment(_ context.Context, sessionID string) (domain.CheckoutPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.checkouts[sessionID]; ok {
		return *p, nil
	}
	return domain.CheckoutPayment{}, domain.NotFound("memory.GetCheckoutPayment", "checkout session", sessionID)
}

// FulfillCheckoutPayment marks the session fulfilled. It reports false when
// the session is unknown or was already fulfilled.
func (s *Store) FulfillCheckoutPayment(_ context.Context, sessionID, customerID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return false, err
	}
	p, ok := s.checkouts[sessionID]
	if !ok || p.Status == domain.CheckoutStatusFulfilled {
		return false, nil
	}
	p.Status = domain.CheckoutStatusFulfilled
	p.CustomerID = customerID
	p.FulfilledAt = &at
	return true, nil
}
