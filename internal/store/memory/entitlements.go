package memory

import (
	"context"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// GetEntitlement returns the record for userID or ENOTFOUND.
func (s *Store) GetEntitlement(_ context.Context, userID string) (domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return domain.Entitlement{}, err
	}
	if e, ok := s.entitlements[userID]; ok {
		return *e, nil
	}
	return domain.Entitlement{}, domain.NotFound("memory.GetEntitlement", "entitlement", userID)
}

// GetEntitlementBySubscriptionID returns the record holding subscriptionID.
func (s *Store) GetEntitlementBySubscriptionID(_ context.Context, subscriptionID string) (domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return domain.Entitlement{}, err
	}
	if subscriptionID != "" {
		for _, e := range s.entitlements {
			if e.SubscriptionID == subscriptionID {
				return *e, nil
			}
		}
	}
	return domain.Entitlement{}, domain.NotFound("memory.GetEntitlementBySubscriptionID", "subscription", subscriptionID)
}

// GetEntitlementByCustomerID returns the most recently updated record for customerID.
func (s *Store) GetEntitlementByCustomerID(_ context.Context, customerID string) (domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return domain.Entitlement{}, err
	}
	var found *domain.Entitlement
	if customerID != "" {
		for _, e := range s.entitlements {
			if e.CustomerID == customerID && (found == nil || e.UpdatedAt.After(found.UpdatedAt)) {
				found = e
			}
		}
	}
	if found == nil {
		return domain.Entitlement{}, domain.NotFound("memory.GetEntitlementByCustomerID", "customer", customerID)
	}
	return *found, nil
}

// PatchEntitlement applies patch to the record for userID, creating it if needed.
func (s *Store) PatchEntitlement(_ context.Context, userID string, patch domain.EntitlementPatch, now time.Time) (domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return domain.Entitlement{}, err
	}
	e, ok := s.entitlements[userID]
	if !ok {
		fresh := domain.NewEntitlement(userID, now)
		e = &fresh
		s.entitlements[userID] = e
	}
	patch.Apply(e, now)
	return *e, nil
}

// IncrementUsage adds one action to the current period, restarting a stale counter.
func (s *Store) IncrementUsage(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return 0, err
	}
	period := domain.PeriodStart(now)
	e, ok := s.entitlements[userID]
	if !ok {
		fresh := domain.NewEntitlement(userID, now)
		e = &fresh
		s.entitlements[userID] = e
	}
	if e.UsagePeriodStart.Before(period) {
		e.ActionsThisPeriod = 0
		e.UsagePeriodStart = period
	}
	e.ActionsThisPeriod++
	e.UpdatedAt = now
	return e.ActionsThisPeriod, nil
}

// ResetUsage zeroes every counter from a period before periodStart.
func (s *Store) ResetUsage(_ context.Context, periodStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return 0, err
	}
	var n int64
	for _, e := range s.entitlements {
		if e.UsagePeriodStart.Before(periodStart) {
			e.ActionsThisPeriod = 0
			e.UsagePeriodStart = periodStart
			n++
		}
	}
	return n, nil
}
