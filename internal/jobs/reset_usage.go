package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/podforge/internal/worker"
)

// UsageResetter zeroes usage counters for a period.
type UsageResetter interface {
	ResetPeriodAt(ctx context.Context, periodStart time.Time) (int64, error)
}

// ResetUsageHandler runs the monthly usage reset.
type ResetUsageHandler struct {
	quota  UsageResetter
	logger *slog.Logger
}

// NewResetUsageHandler creates a new handler for usage reset jobs.
func NewResetUsageHandler(quota UsageResetter, logger *slog.Logger) *ResetUsageHandler {
	return &ResetUsageHandler{quota: quota, logger: logger}
}

// Type returns the job type identifier.
func (h *ResetUsageHandler) Type() string {
	return worker.JobTypeResetUsage
}

// Handle resets counters for the payload's period. Rows already in that
// period are left alone, so a retried job changes nothing.
func (h *ResetUsageHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ResetUsagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.PeriodStart.IsZero() {
		return worker.Permanentf("invalid payload: period_start is required")
	}

	n, err := h.quota.ResetPeriodAt(ctx, p.PeriodStart)
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}

	h.logger.Info("Usage period reset", "period_start", p.PeriodStart, "rows", n)
	return nil
}
