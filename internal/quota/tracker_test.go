package quota_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/store/memory"
)

func newTracker(now *time.Time) (*quota.Tracker, *memory.Store) {
	clock := func() time.Time { return *now }
	store := memory.New(memory.WithClock(clock))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return quota.NewTracker(store, logger, quota.WithClock(clock)), store
}

func TestTracker_CheckAndReserve_NoRecordIsUnused(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(&now)

	check, err := tracker.CheckAndReserve(context.Background(), "user-1", domain.PlanFree)
	require.NoError(t, err)
	assert.True(t, check.OK)
	assert.Equal(t, 0, check.Used)
	assert.Equal(t, 5, check.Ceiling)
	assert.Equal(t, 5, check.Remaining())
}

func TestTracker_CeilingPerPlan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(&now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
		require.NoError(t, err)
	}

	tests := []struct {
		plan domain.Plan
		ok   bool
	}{
		{domain.PlanFree, false},
		{domain.PlanPro, true},
		{domain.PlanEnterprise, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			check, err := tracker.CheckAndReserve(ctx, "user-1", tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, check.OK)
			assert.Equal(t, 5, check.Used)
			assert.Equal(t, tt.plan.Ceiling(), check.Ceiling)
		})
	}
}

func TestTracker_CheckDoesNotReserve(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(&now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		check, err := tracker.CheckAndReserve(ctx, "user-1", domain.PlanFree)
		require.NoError(t, err)
		assert.Equal(t, 0, check.Used)
	}
}

func TestTracker_Record(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(&now)
	ctx := context.Background()

	n, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tracker.Record(ctx, "user-1", domain.ActionPodcast)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Uploads are not metered.
	n, err = tracker.Record(ctx, "user-1", domain.ActionUpload)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	check, err := tracker.CheckAndReserve(ctx, "user-1", domain.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, 2, check.Used)
}

func TestTracker_RecordFailureIsInternal(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, store := newTracker(&now)
	store.FailNext(1, errors.New("disk full"))

	_, err := tracker.Record(context.Background(), "user-1", domain.ActionAudio)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestTracker_CheckFailureIsUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, store := newTracker(&now)
	store.FailNext(1, errors.New("connection reset"))

	_, err := tracker.CheckAndReserve(context.Background(), "user-1", domain.PlanFree)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestTracker_NewMonthReadsAsZero(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(&now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
		require.NoError(t, err)
	}

	now = time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	check, err := tracker.CheckAndReserve(ctx, "user-1", domain.PlanFree)
	require.NoError(t, err)
	assert.True(t, check.OK)
	assert.Equal(t, 0, check.Used)

	n, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTracker_ResetPeriodIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	tracker, store := newTracker(&now)
	ctx := context.Background()

	for _, user := range []string{"user-1", "user-2"} {
		_, err := tracker.Record(ctx, user, domain.ActionAudio)
		require.NoError(t, err)
	}

	now = time.Date(2026, 4, 1, 0, 0, 5, 0, time.UTC)
	_, err := tracker.Record(ctx, "user-3", domain.ActionAudio)
	require.NoError(t, err)

	n, err := tracker.ResetPeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = tracker.ResetPeriod(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e, err := store.GetEntitlement(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.ActionsThisPeriod)
	assert.Equal(t, domain.PeriodStart(now), e.UsagePeriodStart)

	e, err = store.GetEntitlement(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, 1, e.ActionsThisPeriod, "current month usage survives the reset")
}

func TestTracker_ResetPeriodAtTruncatesToMonth(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	tracker, store := newTracker(&now)
	ctx := context.Background()

	_, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
	require.NoError(t, err)

	n, err := tracker.ResetPeriodAt(ctx, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e, err := store.GetEntitlement(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), e.UsagePeriodStart)
}

func TestCheck_Remaining(t *testing.T) {
	assert.Equal(t, 3, quota.Check{Used: 2, Ceiling: 5}.Remaining())
	assert.Equal(t, 0, quota.Check{Used: 5, Ceiling: 5}.Remaining())
	assert.Equal(t, 0, quota.Check{Used: 7, Ceiling: 5}.Remaining())
}

func TestTracker_EvaluateMatchesCheckAndReserve(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, store := newTracker(&now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.Record(ctx, "user-1", domain.ActionAudio)
		require.NoError(t, err)
	}

	for _, at := range []time.Time{now, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)} {
		now = at
		e, err := store.GetEntitlement(ctx, "user-1")
		require.NoError(t, err)

		for _, plan := range []domain.Plan{domain.PlanFree, domain.PlanPro} {
			check, err := tracker.CheckAndReserve(ctx, "user-1", plan)
			require.NoError(t, err)
			assert.Equal(t, check, tracker.Evaluate(e, plan), "%s at %s", plan, at)
		}
	}
}
