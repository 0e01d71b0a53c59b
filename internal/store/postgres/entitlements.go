package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/repository"
)

func toEntitlement(row repository.Entitlement) domain.Entitlement {
	return domain.Entitlement{
		UserID:            row.UserID,
		Plan:              domain.Plan(row.Plan),
		SubscriptionID:    domain.NullStringValue(row.SubscriptionID),
		CustomerID:        domain.NullStringValue(row.CustomerID),
		PlanEndsAt:        domain.NullTimeValue(row.PlanEndsAt),
		CancelAt:          domain.NullTimeValue(row.CancelAt),
		ActionsThisPeriod: int(row.ActionsThisPeriod),
		UsagePeriodStart:  row.UsagePeriodStart,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

// GetEntitlement returns the record for userID or ENOTFOUND.
func (s *Store) GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error) {
	row, err := s.queries.GetEntitlementByUserID(ctx, userID)
	if err != nil {
		return domain.Entitlement{}, notFoundOr(err, "postgres.GetEntitlement", "entitlement", userID)
	}
	return toEntitlement(row), nil
}

// GetEntitlementBySubscriptionID returns the record holding subscriptionID.
func (s *Store) GetEntitlementBySubscriptionID(ctx context.Context, subscriptionID string) (domain.Entitlement, error) {
	row, err := s.queries.GetEntitlementBySubscriptionID(ctx, domain.ToNullString(subscriptionID))
	if err != nil {
		return domain.Entitlement{}, notFoundOr(err, "postgres.GetEntitlementBySubscriptionID", "subscription", subscriptionID)
	}
	return toEntitlement(row), nil
}

// GetEntitlementByCustomerID returns the most recently updated record for customerID.
func (s *Store) GetEntitlementByCustomerID(ctx context.Context, customerID string) (domain.Entitlement, error) {
	row, err := s.queries.GetEntitlementByCustomerID(ctx, domain.ToNullString(customerID))
	if err != nil {
		return domain.Entitlement{}, notFoundOr(err, "postgres.GetEntitlementByCustomerID", "customer", customerID)
	}
	return toEntitlement(row), nil
}

// PatchEntitlement locks the user's row, applies patch and writes it back,
// inserting a Free record first when none exists.
func (s *Store) PatchEntitlement(ctx context.Context, userID string, patch domain.EntitlementPatch, now time.Time) (domain.Entitlement, error) {
	var out domain.Entitlement
	err := s.withTx(ctx, func(q *repository.Queries) error {
		current := domain.NewEntitlement(userID, now)
		row, err := q.GetEntitlementByUserIDForUpdate(ctx, userID)
		switch {
		case err == nil:
			current = toEntitlement(row)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lock entitlement: %w", err)
		}

		patch.Apply(&current, now)

		saved, err := q.UpsertEntitlement(ctx, repository.UpsertEntitlementParams{
			UserID:           userID,
			Plan:             string(current.Plan),
			SubscriptionID:   domain.ToNullString(current.SubscriptionID),
			CustomerID:       domain.ToNullString(current.CustomerID),
			PlanEndsAt:       domain.ToNullTime(current.PlanEndsAt),
			CancelAt:         domain.ToNullTime(current.CancelAt),
			UsagePeriodStart: current.UsagePeriodStart,
			UpdatedAt:        now,
		})
		if err != nil {
			return fmt.Errorf("upsert entitlement: %w", err)
		}
		out = toEntitlement(saved)
		return nil
	})
	if err != nil {
		return domain.Entitlement{}, err
	}
	return out, nil
}

// IncrementUsage adds one action to the current period, restarting a stale counter.
func (s *Store) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	n, err := s.queries.IncrementActionCount(ctx, repository.IncrementActionCountParams{
		UserID:           userID,
		UsagePeriodStart: domain.PeriodStart(now),
		UpdatedAt:        now,
	})
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return int(n), nil
}

// ResetUsage zeroes every counter from a period before periodStart.
func (s *Store) ResetUsage(ctx context.Context, periodStart time.Time) (int64, error) {
	n, err := s.queries.ResetUsagePeriod(ctx, periodStart)
	if err != nil {
		return 0, fmt.Errorf("reset usage: %w", err)
	}
	return n, nil
}
