// Package handler contains HTTP handlers for the podforge API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no identity middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/podforge/internal/billing"
	"github.com/DukeRupert/podforge/internal/domain"
)

// maxWebhookBodySize bounds webhook payloads.
const maxWebhookBodySize = 1 << 20

// WebhookProcessor verifies and applies one webhook delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) billing.Result
}

// WebhookResponse is the JSON acknowledgement returned to Stripe.
type WebhookResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// processor may be nil when Stripe is not configured.
func NewWebhookHandler(processor WebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC; no identity middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events. A non-2xx
// answer makes Stripe redeliver the event.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		writeJSON(w, http.StatusServiceUnavailable, WebhookResponse{Error: "billing is not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("webhook body too large", "limit", maxWebhookBodySize)
		} else {
			h.logger.Error("failed to read webhook body", "error", err)
		}
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Error: "unreadable payload"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook received without signature")
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Error: "missing signature"})
		return
	}

	res := h.processor.Process(r.Context(), body, signature)
	if res.Err != nil {
		code := domain.ErrorCode(res.Err)
		status := ErrorCodeToHTTPStatus(code)
		if code == domain.EINTERNAL || status < 400 {
			status = http.StatusInternalServerError
		}
		logError(h.logger, r, res.Err, code, domain.ErrorOp(res.Err), status)
		writeJSON(w, status, WebhookResponse{Error: domain.ErrorMessage(res.Err)})
		return
	}

	h.logger.Info("stripe webhook handled",
		"event_id", res.EventID,
		"event_type", res.EventType,
		"duplicate", res.Duplicate,
	)
	writeJSON(w, http.StatusOK, WebhookResponse{Success: true, Duplicate: res.Duplicate})
}
