// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ledger"
	"github.com/DukeRupert/podforge/internal/worker"
)

// TransitionApplier applies a fired deferred transition.
type TransitionApplier interface {
	ApplyDeferredTransition(ctx context.Context, tr domain.DeferredTransition) (ledger.TransitionResult, error)
}

// DeferredTransitionHandler fires scheduled plan transitions such as the
// downgrade at the end of a canceled term.
type DeferredTransitionHandler struct {
	ledger TransitionApplier
	logger *slog.Logger
}

// NewDeferredTransitionHandler creates a new handler for deferred transition jobs.
func NewDeferredTransitionHandler(l TransitionApplier, logger *slog.Logger) *DeferredTransitionHandler {
	return &DeferredTransitionHandler{ledger: l, logger: logger}
}

// Type returns the job type identifier.
func (h *DeferredTransitionHandler) Type() string {
	return worker.JobTypeDeferredTransition
}

// Handle re-verifies and applies the transition. A superseded transition
// completes without error.
func (h *DeferredTransitionHandler) Handle(ctx context.Context, payload []byte) error {
	var tr domain.DeferredTransition
	if err := json.Unmarshal(payload, &tr); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if tr.SubscriptionID == "" || tr.NewPlan == "" {
		return worker.Permanentf("invalid payload: subscription id and plan are required")
	}

	res, err := h.ledger.ApplyDeferredTransition(ctx, tr)
	if err != nil {
		return fmt.Errorf("apply deferred transition: %w", err)
	}

	if res.Applied {
		h.logger.Info("Deferred transition fired",
			"subscription_id", tr.SubscriptionID,
			"user_id", res.Entitlement.UserID,
			"plan", res.Entitlement.Plan,
		)
	} else {
		h.logger.Info("Deferred transition skipped",
			"subscription_id", tr.SubscriptionID,
			"reason", res.SupersededReason,
		)
	}
	return nil
}
