package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredTransition_CheckSuperseded(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ends := now.Add(30 * 24 * time.Hour)
	cancel := now.Add(10 * 24 * time.Hour)

	scheduled := Entitlement{
		UserID:         "user_1",
		Plan:           PlanPro,
		SubscriptionID: "sub_1",
		PlanEndsAt:     &ends,
		CancelAt:       &cancel,
	}
	tr := NewDowngrade(scheduled, cancel)

	extended := ends.Add(30 * 24 * time.Hour)
	moved := cancel.Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(e *Entitlement)
		want   string
	}{
		{"unchanged record", func(e *Entitlement) {}, ""},
		{"cancellation withdrawn", func(e *Entitlement) { e.CancelAt = nil }, SupersededCancelCleared},
		{"cancellation moved", func(e *Entitlement) { e.CancelAt = &moved }, SupersededCancelMoved},
		{"term extended", func(e *Entitlement) { e.PlanEndsAt = &extended }, SupersededTermExtended},
		{"subscription replaced", func(e *Entitlement) { e.SubscriptionID = "sub_2" }, SupersededSubscriptionGone},
		{"already downgraded", func(e *Entitlement) {
			e.Plan = PlanFree
			e.PlanEndsAt = nil
			e.CancelAt = nil
		}, SupersededAlreadyApplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := scheduled
			tt.mutate(&e)
			assert.Equal(t, tt.want, tr.CheckSuperseded(e))
		})
	}
}

func TestDeferredTransition_DedupeKey(t *testing.T) {
	ends := time.Unix(1_800_000_000, 0).UTC()
	cancel := time.Unix(1_790_000_000, 0).UTC()
	tr := NewDowngrade(Entitlement{SubscriptionID: "sub_1", PlanEndsAt: &ends}, cancel)

	assert.Equal(t, "downgrade:sub_1:1790000000:1800000000", tr.DedupeKey())
	assert.Equal(t, PlanFree, tr.NewPlan)
	require.NotNil(t, tr.Expected.PlanEndsAt)
	assert.True(t, tr.Expected.PlanEndsAt.Equal(ends))
}

func TestDecision_Err(t *testing.T) {
	retry := time.Date(2026, 3, 1, 0, 2, 5, 0, time.UTC)

	err := Decision{Outcome: OutcomeRateLimited, RetryAt: retry}.Err("op")
	assert.Equal(t, ERATELIMIT, ErrorCode(err))
	got, ok := RetryAt(err)
	assert.True(t, ok)
	assert.Equal(t, retry, got)

	err = Decision{Outcome: OutcomeQuotaExceeded, Plan: PlanFree, Used: 5, Ceiling: 5}.Err("op")
	assert.Equal(t, EQUOTA, ErrorCode(err))
	assert.Contains(t, ErrorMessage(err), "5")

	assert.Equal(t, EPAYMENT, ErrorCode(Decision{Outcome: OutcomeSubscriptionRequired}.Err("op")))
	assert.Equal(t, EUNAUTHORIZED, ErrorCode(Decision{Outcome: OutcomeNotAuthenticated}.Err("op")))
	assert.NoError(t, Decision{Outcome: OutcomeAdmitted}.Err("op"))
}
