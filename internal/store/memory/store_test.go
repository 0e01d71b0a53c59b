package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/DukeRupert/podforge/internal/worker"
)

func TestStore_Admit(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := ratelimit.Key{Kind: domain.ActionAudio, Subject: "user-1"}
	rule := ratelimit.Rule{Rate: 2, Period: time.Minute}
	t0 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	w, ok, err := s.Admit(ctx, key, rule, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ratelimit.Window{Start: t0, Count: 1}, w)

	_, ok, err = s.Admit(ctx, key, rule, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	w, ok, err = s.Admit(ctx, key, rule, t0.Add(59*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, w.Count)

	w, ok, err = s.Admit(ctx, key, rule, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ratelimit.Window{Start: t0.Add(time.Minute), Count: 1}, w)
}

func TestStore_FailNext(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	s.FailNext(2, boom)

	_, err := s.GetEntitlement(ctx, "user-1")
	assert.ErrorIs(t, err, boom)
	_, err = s.IncrementUsage(ctx, "user-1", time.Now())
	assert.ErrorIs(t, err, boom)

	n, err := s.IncrementUsage(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_PatchEntitlement(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	plan := domain.PlanPro
	sub := "sub_1"
	cus := "cus_1"
	ends := now.AddDate(0, 1, 0)

	e, err := s.PatchEntitlement(ctx, "user-1", domain.EntitlementPatch{
		Plan:           &plan,
		SubscriptionID: &sub,
		CustomerID:     &cus,
		PlanEndsAt:     &ends,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, e.Plan)
	assert.Equal(t, domain.PeriodStart(now), e.UsagePeriodStart)

	bySub, err := s.GetEntitlementBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", bySub.UserID)

	byCus, err := s.GetEntitlementByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byCus.UserID)

	_, err = s.GetEntitlementBySubscriptionID(ctx, "")
	assert.True(t, domain.IsNotFound(err))

	e, err = s.PatchEntitlement(ctx, "user-1", domain.EntitlementPatch{ClearPlanEndsAt: true}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, e.PlanEndsAt)
	assert.Equal(t, domain.PlanPro, e.Plan, "unset fields are untouched")
	assert.Equal(t, now.Add(time.Hour), e.UpdatedAt)
}

func TestStore_JobQueue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	later, created, err := s.Enqueue(ctx, worker.EnqueueParams{
		Type:        "later",
		Priority:    worker.PriorityHigh,
		MaxAttempts: 3,
		ScheduledAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, created)

	low, _, err := s.Enqueue(ctx, worker.EnqueueParams{Type: "low", Priority: worker.PriorityLow, MaxAttempts: 3, ScheduledAt: now})
	require.NoError(t, err)
	high, _, err := s.Enqueue(ctx, worker.EnqueueParams{Type: "high", Priority: worker.PriorityHigh, MaxAttempts: 1, ScheduledAt: now})
	require.NoError(t, err)

	job, err := s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, job.ID)
	assert.Equal(t, int32(1), job.Attempts)

	job, err = s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, job.ID)

	_, err = s.Dequeue(ctx)
	assert.ErrorIs(t, err, worker.ErrNoJobs, "future jobs are not due")

	// Retryable failure backs off; exhausted failure is final.
	require.NoError(t, s.Fail(ctx, low.ID, "try again", false))
	require.NoError(t, s.Fail(ctx, high.ID, "gave up", false))

	jobs := s.Jobs("low")
	require.Len(t, jobs, 1)
	assert.Equal(t, "pending", jobs[0].Status)
	assert.Equal(t, now.Add(30*time.Second), jobs[0].Job.ScheduledAt)
	assert.Equal(t, "failed", s.Jobs("high")[0].Status)

	now = now.Add(time.Hour)
	job, err = s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, later.ID, job.ID, "higher priority wins once due")
	require.NoError(t, s.Complete(ctx, job.ID))
	assert.Equal(t, "completed", s.Jobs("later")[0].Status)
}

func TestStore_EnqueueDedupe(t *testing.T) {
	s := New()
	ctx := context.Background()
	params := worker.EnqueueParams{Type: "t", DedupeKey: "k", MaxAttempts: 1}

	first, created, err := s.Enqueue(ctx, params)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.Enqueue(ctx, params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.Jobs(""), 1)
}

func TestStore_RecoverStale(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, _, err := s.Enqueue(ctx, worker.EnqueueParams{Type: "t", MaxAttempts: 3, ScheduledAt: now})
	require.NoError(t, err)
	_, err = s.Dequeue(ctx)
	require.NoError(t, err)

	n, err := s.RecoverStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(11 * time.Minute)
	n, err = s.RecoverStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "pending", s.Jobs("t")[0].Status)
}

func TestStore_WebhookEvents(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	e, err := s.RecordWebhookEvent(ctx, domain.WebhookEvent{ID: "evt_1", Type: "invoice.paid", ReceivedAt: at})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Attempts)

	require.NoError(t, s.MarkWebhookEventFailed(ctx, "evt_1", "ledger unavailable"))
	e, err = s.RecordWebhookEvent(ctx, domain.WebhookEvent{ID: "evt_1", Type: "invoice.paid", ReceivedAt: at})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Attempts)
	assert.Equal(t, "ledger unavailable", e.Error)
	assert.False(t, e.Processed())

	require.NoError(t, s.MarkWebhookEventProcessed(ctx, "evt_1", at))
	stored, ok := s.WebhookEvent("evt_1")
	require.True(t, ok)
	assert.True(t, stored.Processed())
	assert.Empty(t, stored.Error)
}

func TestStore_CheckoutPayments(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateCheckoutPayment(ctx, domain.CheckoutPayment{
		SessionID: "cs_1", UserID: "user-1", Plan: domain.PlanPro, Status: domain.CheckoutStatusPending,
	}))

	ok, err := s.FulfillCheckoutPayment(ctx, "cs_1", "cus_1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FulfillCheckoutPayment(ctx, "cs_1", "cus_1", at)
	require.NoError(t, err)
	assert.False(t, ok, "second fulfilment is a no-op")

	ok, err = s.FulfillCheckoutPayment(ctx, "cs_unknown", "cus_1", at)
	require.NoError(t, err)
	assert.False(t, ok)
}
