package domain

import (
	"fmt"
	"time"
)

// ExpectedState is the entitlement state captured when a deferred transition
// was scheduled. The transition only applies while the record still matches.
type ExpectedState struct {
	SubscriptionID string     `json:"subscriptionId"`
	PlanEndsAt     *time.Time `json:"planEndsAt,omitempty"`
	CancelAt       time.Time  `json:"cancelAt"`
}

// DeferredTransition is a plan change registered to run at FireAt.
type DeferredTransition struct {
	SubscriptionID string        `json:"subscriptionId"`
	FireAt         time.Time     `json:"fireAt"`
	NewPlan        Plan          `json:"newPlan"`
	Expected       ExpectedState `json:"expected"`
}

// NewDowngrade builds the downgrade-to-Free transition for a scheduled cancellation.
func NewDowngrade(e Entitlement, cancelAt time.Time) DeferredTransition {
	var endsAt *time.Time
	if e.PlanEndsAt != nil {
		t := *e.PlanEndsAt
		endsAt = &t
	}
	return DeferredTransition{
		SubscriptionID: e.SubscriptionID,
		FireAt:         cancelAt,
		NewPlan:        PlanFree,
		Expected: ExpectedState{
			SubscriptionID: e.SubscriptionID,
			PlanEndsAt:     endsAt,
			CancelAt:       cancelAt,
		},
	}
}

// DedupeKey identifies a schedule so repeated registrations collapse to one job.
func (t DeferredTransition) DedupeKey() string {
	var ends int64
	if t.Expected.PlanEndsAt != nil {
		ends = t.Expected.PlanEndsAt.Unix()
	}
	return fmt.Sprintf("downgrade:%s:%d:%d", t.SubscriptionID, t.FireAt.Unix(), ends)
}

// Supersession reasons reported by CheckSuperseded.
const (
	SupersededCancelCleared    = "cancel_cleared"
	SupersededCancelMoved      = "cancel_moved"
	SupersededTermExtended     = "term_extended"
	SupersededAlreadyApplied   = "already_applied"
	SupersededSubscriptionGone = "subscription_gone"
)

// CheckSuperseded compares the current record against the expected state.
// It returns a non-empty reason when a newer event has overridden the schedule.
func (t DeferredTransition) CheckSuperseded(e Entitlement) string {
	if e.SubscriptionID != t.Expected.SubscriptionID {
		return SupersededSubscriptionGone
	}
	if e.CancelAt == nil {
		if e.Plan == t.NewPlan && e.PlanEndsAt == nil {
			return SupersededAlreadyApplied
		}
		return SupersededCancelCleared
	}
	if !e.CancelAt.Equal(t.Expected.CancelAt) {
		return SupersededCancelMoved
	}
	if e.PlanEndsAt != nil && t.Expected.PlanEndsAt != nil && e.PlanEndsAt.After(*t.Expected.PlanEndsAt) {
		return SupersededTermExtended
	}
	return ""
}
