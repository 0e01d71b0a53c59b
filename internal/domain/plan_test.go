package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Plan
		wantOK bool
	}{
		{"canonical", "Pro", PlanPro, true},
		{"lower case", "enterprise", PlanEnterprise, true},
		{"upper case", "FREE", PlanFree, true},
		{"annual product name", "Pro Annual", PlanPro, true},
		{"dashed checkout option", "Enterprise-annual", PlanEnterprise, true},
		{"surrounding space", "  pro  ", PlanPro, true},
		{"unknown", "Platinum", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePlan(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_Ceiling(t *testing.T) {
	assert.Equal(t, 5, PlanFree.Ceiling())
	assert.Equal(t, 30, PlanPro.Ceiling())
	assert.Equal(t, 100, PlanEnterprise.Ceiling())
	assert.Equal(t, 5, Plan("Legacy").Ceiling(), "unknown plans fall back to Free")
}

func TestEntitlement_EffectivePlan(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name   string
		plan   Plan
		endsAt *time.Time
		want   Plan
	}{
		{"paid with future end", PlanPro, &future, PlanPro},
		{"paid with past end", PlanPro, &past, PlanFree},
		{"paid with end equal to now", PlanEnterprise, &now, PlanFree},
		{"paid without end", PlanEnterprise, nil, PlanFree},
		{"free with future end", PlanFree, &future, PlanFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entitlement{Plan: tt.plan, PlanEndsAt: tt.endsAt}
			assert.Equal(t, tt.want, e.EffectivePlan(now))
			assert.Equal(t, tt.want != PlanFree, e.IsPaidActive(now))
		})
	}
}

func TestEntitlement_UsageAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	current := Entitlement{ActionsThisPeriod: 4, UsagePeriodStart: PeriodStart(now)}
	assert.Equal(t, 4, current.UsageAt(now))

	stale := Entitlement{ActionsThisPeriod: 4, UsagePeriodStart: PeriodStart(now).AddDate(0, -1, 0)}
	assert.Equal(t, 0, stale.UsageAt(now))
}

func TestEntitlement_View(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ends := now.Add(24 * time.Hour)
	load := func() Entitlement {
		return Entitlement{
			UserID:            "user-1",
			Plan:              PlanPro,
			PlanEndsAt:        &ends,
			ActionsThisPeriod: 7,
			UsagePeriodStart:  PeriodStart(now),
		}
	}

	v := load().View(now)
	assert.Equal(t, PlanPro, v.Plan)
	assert.True(t, v.Active)
	assert.Equal(t, 7, v.Used)
	assert.Equal(t, 30, v.Ceiling)

	lapsed := load().View(ends)
	assert.Equal(t, PlanFree, lapsed.Plan)
	assert.Equal(t, PlanPro, lapsed.StoredPlan)
	assert.Equal(t, 5, lapsed.Ceiling)
	assert.Equal(t, 0, load().UsageAt(now.AddDate(0, 1, 0)))
}

func TestPeriodStart(t *testing.T) {
	in := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), PeriodStart(in))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), NextPeriodStart(in))
}

func TestEntitlementPatch_Apply(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ends := now.Add(30 * 24 * time.Hour)
	cancel := now.Add(10 * 24 * time.Hour)
	e := Entitlement{
		UserID:         "user_1",
		Plan:           PlanPro,
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		PlanEndsAt:     &ends,
		CancelAt:       &cancel,
	}

	free := PlanFree
	empty := ""
	EntitlementPatch{
		Plan:            &free,
		SubscriptionID:  &empty,
		ClearPlanEndsAt: true,
		ClearCancelAt:   true,
	}.Apply(&e, now)

	assert.Equal(t, PlanFree, e.Plan)
	assert.Empty(t, e.SubscriptionID)
	assert.Equal(t, "cus_1", e.CustomerID, "untouched fields are preserved")
	assert.Nil(t, e.PlanEndsAt)
	assert.Nil(t, e.CancelAt)
	assert.Equal(t, now, e.UpdatedAt)
}

func TestParseVoice(t *testing.T) {
	v, ok := ParseVoice("")
	assert.True(t, ok)
	assert.Equal(t, DefaultVoice, v)

	v, ok = ParseVoice("Nova")
	assert.True(t, ok)
	assert.Equal(t, VoiceNova, v)

	_, ok = ParseVoice("robot")
	assert.False(t, ok)
}

func TestActionKind_Metered(t *testing.T) {
	assert.True(t, ActionAudio.Metered())
	assert.True(t, ActionThumbnail.Metered())
	assert.True(t, ActionPodcast.Metered())
	assert.False(t, ActionUpload.Metered())
}
