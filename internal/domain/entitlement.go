// Package domain contains core business types and interfaces.
//
// This file defines the entitlement record that holds a user's plan, billing
// identifiers and usage counter.
package domain

import (
	"database/sql"
	"time"
)

// Entitlement is the per-user record of plan, paid term and monthly usage.
//
// The stored Plan is only effective while PlanEndsAt is in the future; see
// EffectivePlan.
type Entitlement struct {
	UserID            string
	Plan              Plan
	SubscriptionID    string
	CustomerID        string
	PlanEndsAt        *time.Time
	CancelAt          *time.Time
	ActionsThisPeriod int
	UsagePeriodStart  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewEntitlement returns the implicit record of a user with no stored state.
func NewEntitlement(userID string, now time.Time) Entitlement {
	return Entitlement{
		UserID:           userID,
		Plan:             PlanFree,
		UsagePeriodStart: PeriodStart(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsPaidActive returns true if a paid plan is active at now.
func (e Entitlement) IsPaidActive(now time.Time) bool {
	return e.Plan.IsPaid() && e.PlanEndsAt != nil && e.PlanEndsAt.After(now)
}

// EffectivePlan returns the plan that governs quota and features at now.
func (e Entitlement) EffectivePlan(now time.Time) Plan {
	if e.IsPaidActive(now) {
		return e.Plan
	}
	return PlanFree
}

// UsageAt returns the action count for the period containing now. A counter
// left over from an earlier period reads as zero.
func (e Entitlement) UsageAt(now time.Time) int {
	if e.UsagePeriodStart.Before(PeriodStart(now)) {
		return 0
	}
	return e.ActionsThisPeriod
}

// PeriodStart returns the first instant of the calendar month (UTC) containing t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextPeriodStart returns the first instant of the month after t.
func NextPeriodStart(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}

// EntitlementPatch is an upsert-style partial update. Nil fields are left
// untouched; the Clear flags null the corresponding column.
type EntitlementPatch struct {
	Plan            *Plan
	SubscriptionID  *string
	CustomerID      *string
	PlanEndsAt      *time.Time
	ClearPlanEndsAt bool
	CancelAt        *time.Time
	ClearCancelAt   bool
}

// Apply writes the patch onto e and stamps UpdatedAt.
func (p EntitlementPatch) Apply(e *Entitlement, now time.Time) {
	if p.Plan != nil {
		e.Plan = *p.Plan
	}
	if p.SubscriptionID != nil {
		e.SubscriptionID = *p.SubscriptionID
	}
	if p.CustomerID != nil {
		e.CustomerID = *p.CustomerID
	}
	switch {
	case p.ClearPlanEndsAt:
		e.PlanEndsAt = nil
	case p.PlanEndsAt != nil:
		t := *p.PlanEndsAt
		e.PlanEndsAt = &t
	}
	switch {
	case p.ClearCancelAt:
		e.CancelAt = nil
	case p.CancelAt != nil:
		t := *p.CancelAt
		e.CancelAt = &t
	}
	e.UpdatedAt = now
}

// EntitlementView is the read model returned to clients.
type EntitlementView struct {
	UserID         string     `json:"userId"`
	Plan           Plan       `json:"plan"`
	StoredPlan     Plan       `json:"storedPlan"`
	Active         bool       `json:"active"`
	PlanEndsAt     *time.Time `json:"planEndsAt,omitempty"`
	CancelAt       *time.Time `json:"cancelAt,omitempty"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	CustomerID     string     `json:"customerId,omitempty"`
	Used           int        `json:"used"`
	Ceiling        int        `json:"ceiling"`
}

// View builds the client read model at now.
func (e Entitlement) View(now time.Time) EntitlementView {
	plan := e.EffectivePlan(now)
	return EntitlementView{
		UserID:         e.UserID,
		Plan:           plan,
		StoredPlan:     e.Plan,
		Active:         e.IsPaidActive(now),
		PlanEndsAt:     e.PlanEndsAt,
		CancelAt:       e.CancelAt,
		SubscriptionID: e.SubscriptionID,
		CustomerID:     e.CustomerID,
		Used:           e.UsageAt(now),
		Ceiling:        plan.Ceiling(),
	}
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
