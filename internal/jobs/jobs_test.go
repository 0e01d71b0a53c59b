package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ledger"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/store/memory"
	"github.com/DukeRupert/podforge/internal/worker"
)

type harness struct {
	now     time.Time
	store   *memory.Store
	ledger  *ledger.Ledger
	tracker *quota.Tracker
	worker  *worker.Worker
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()

	h := &harness{now: start}
	clock := func() time.Time { return h.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h.store = memory.New(memory.WithClock(clock))
	h.ledger = ledger.New(h.store, worker.NewScheduler(h.store, logger), logger, ledger.WithClock(clock))
	h.tracker = quota.NewTracker(h.store, logger, quota.WithClock(clock))

	w, err := worker.New(h.store, worker.DefaultConfig(), logger)
	require.NoError(t, err)
	w.Register(NewDeferredTransitionHandler(h.ledger, logger))
	w.Register(NewResetUsageHandler(h.tracker, logger))
	h.worker = w
	return h
}

func (h *harness) subscribe(t *testing.T, userID string, term time.Duration) {
	t.Helper()
	_, err := h.ledger.ApplyCheckoutCompleted(context.Background(), ledger.Checkout{
		UserID:         userID,
		CustomerID:     "cus_" + userID,
		SubscriptionID: "sub_" + userID,
		Plan:           domain.PlanPro,
		PlanEndsAt:     h.now.Add(term),
	})
	require.NoError(t, err)
}

func (h *harness) scheduleCancel(t *testing.T, userID string, term, cancelIn time.Duration) time.Time {
	t.Helper()
	cancelAt := h.now.Add(cancelIn)
	_, err := h.ledger.ApplySubscriptionUpdated(context.Background(), ledger.SubscriptionChange{
		SubscriptionID: "sub_" + userID,
		CustomerID:     "cus_" + userID,
		Plan:           domain.PlanPro,
		PlanEndsAt:     h.now.Add(term),
		CancelAt:       &cancelAt,
	})
	require.NoError(t, err)
	return cancelAt
}

func (h *harness) entitlement(t *testing.T, userID string) domain.Entitlement {
	t.Helper()
	e, err := h.ledger.GetEntitlement(context.Background(), userID)
	require.NoError(t, err)
	return e
}

func TestDeferredDowngrade_FiresAtCancelAt(t *testing.T) {
	day := 24 * time.Hour
	h := newHarness(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	h.subscribe(t, "u1", 30*day)
	cancelAt := h.scheduleCancel(t, "u1", 30*day, 10*day)

	// Nothing is due before the cancel instant.
	h.now = cancelAt.Add(-time.Minute)
	n, err := h.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.PlanPro, h.entitlement(t, "u1").EffectivePlan(h.now))

	h.now = cancelAt.Add(time.Second)
	n, err = h.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e := h.entitlement(t, "u1")
	assert.Equal(t, domain.PlanFree, e.Plan)
	assert.Nil(t, e.PlanEndsAt)
	assert.Nil(t, e.CancelAt)
	assert.Equal(t, "sub_u1", e.SubscriptionID)

	jobs := h.store.Jobs(worker.JobTypeDeferredTransition)
	require.Len(t, jobs, 1)
	assert.Equal(t, "completed", jobs[0].Status)
}

func TestDeferredDowngrade_SupersededByResubscribe(t *testing.T) {
	day := 24 * time.Hour
	h := newHarness(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	h.subscribe(t, "u1", 30*day)
	cancelAt := h.scheduleCancel(t, "u1", 30*day, 10*day)

	// The user resumes before the cancel instant: cancel_at is cleared.
	h.now = h.now.Add(2 * day)
	_, err := h.ledger.ApplySubscriptionUpdated(context.Background(), ledger.SubscriptionChange{
		SubscriptionID: "sub_u1",
		Plan:           domain.PlanPro,
		PlanEndsAt:     time.Date(2026, 5, 31, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	h.now = cancelAt.Add(time.Minute)
	n, err := h.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e := h.entitlement(t, "u1")
	assert.Equal(t, domain.PlanPro, e.Plan)
	assert.True(t, e.IsPaidActive(h.now))

	jobs := h.store.Jobs(worker.JobTypeDeferredTransition)
	require.Len(t, jobs, 1)
	assert.Equal(t, "completed", jobs[0].Status, "superseded transitions complete without error")
}

func TestDeferredDowngrade_SupersededByMovedCancel(t *testing.T) {
	day := 24 * time.Hour
	h := newHarness(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	h.subscribe(t, "u1", 30*day)
	first := h.scheduleCancel(t, "u1", 30*day, 10*day)
	second := h.scheduleCancel(t, "u1", 30*day, 20*day)
	require.Len(t, h.store.Jobs(worker.JobTypeDeferredTransition), 2)

	h.now = first.Add(time.Minute)
	_, err := h.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, h.entitlement(t, "u1").Plan)

	h.now = second.Add(time.Minute)
	_, err = h.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, h.entitlement(t, "u1").Plan)
}

func TestDeferredTransitionHandler_InvalidPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewDeferredTransitionHandler(nil, logger)

	for _, payload := range []string{`not json`, `{}`} {
		err := handler.Handle(context.Background(), []byte(payload))
		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err), "payload %q", payload)
	}
}

func TestDeferredTransition_CorruptJobIsNotRetried(t *testing.T) {
	h := newHarness(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _, err := worker.EnqueueJob(ctx, h.store, worker.JobTypeDeferredTransition,
		map[string]string{"subscriptionId": "sub_u1"}, worker.WithScheduledAt(h.now))
	require.NoError(t, err)

	n, err := h.worker.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs := h.store.Jobs(worker.JobTypeDeferredTransition)
	require.Len(t, jobs, 1)
	assert.Equal(t, "failed", jobs[0].Status)
	assert.Equal(t, int32(1), jobs[0].Job.Attempts)
	assert.Equal(t, int32(10), jobs[0].Job.MaxAttempts)
	assert.Contains(t, jobs[0].LastError, "invalid payload")
}

func TestResetUsage_MonthlyJob(t *testing.T) {
	h := newHarness(t, time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := h.tracker.Record(ctx, "u1", domain.ActionAudio)
		require.NoError(t, err)
	}

	trigger := worker.NewMonthlyTrigger(h.store, slog.New(slog.NewTextHandler(io.Discard, nil)),
		worker.WithTriggerClock(func() time.Time { return h.now }))
	trigger.Ensure(ctx)
	trigger.Ensure(ctx)
	require.Len(t, h.store.Jobs(worker.JobTypeResetUsage), 2, "current and next period, once each")

	// The current period's job is due immediately and leaves this month's count alone.
	_, err := h.worker.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, h.entitlement(t, "u1").UsageAt(h.now))

	h.now = time.Date(2026, 6, 1, 0, 0, 1, 0, time.UTC)
	_, err = h.worker.Drain(ctx)
	require.NoError(t, err)

	e := h.entitlement(t, "u1")
	assert.Equal(t, 0, e.ActionsThisPeriod)
	assert.True(t, e.UsagePeriodStart.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))

	for _, j := range h.store.Jobs(worker.JobTypeResetUsage) {
		assert.Equal(t, "completed", j.Status)
	}
}

func TestResetUsageHandler_InvalidPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewResetUsageHandler(nil, logger)

	err := handler.Handle(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}
