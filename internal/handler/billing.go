// Package handler contains HTTP handlers for the podforge API.
//
// This file implements the entitlement and billing handlers.
//
// Routes handled:
//   - GET  /api/entitlement       -> ShowEntitlement
//   - POST /api/billing/checkout  -> CreateCheckout
//   - POST /api/billing/portal    -> OpenPortal
//   - POST /api/billing/cancel    -> CancelSubscription
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/podforge/internal/auth"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/service"
)

// EntitlementReader returns a user's current entitlement.
type EntitlementReader interface {
	GetEntitlement(ctx context.Context, userID string) (domain.Entitlement, error)
}

// Billing starts checkouts and manages subscriptions at the payment processor.
type Billing interface {
	StartCheckout(ctx context.Context, userID, option string) (*service.Checkout, error)
	PortalURL(ctx context.Context, userID string) (string, error)
	CancelNow(ctx context.Context, userID string) (domain.Entitlement, error)
}

// BillingHandler handles entitlement and subscription management requests.
type BillingHandler struct {
	entitlements EntitlementReader
	billing      Billing
	now          func() time.Time
	logger       *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billing may be nil when Stripe is not configured (development mode).
func NewBillingHandler(entitlements EntitlementReader, billing Billing, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		entitlements: entitlements,
		billing:      billing,
		now:          time.Now,
		logger:       logger,
	}
}

// RegisterRoutes registers entitlement and billing routes on the provided mux.
// limit wraps the billing mutations; pass the identity check inside it.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/entitlement", requireUser(http.HandlerFunc(h.ShowEntitlement)))
	mux.Handle("POST /api/billing/checkout", requireUser(limit(http.HandlerFunc(h.CreateCheckout))))
	mux.Handle("POST /api/billing/portal", requireUser(limit(http.HandlerFunc(h.OpenPortal))))
	mux.Handle("POST /api/billing/cancel", requireUser(limit(http.HandlerFunc(h.CancelSubscription))))
}

// ShowEntitlement returns the caller's plan and usage summary.
func (h *BillingHandler) ShowEntitlement(w http.ResponseWriter, r *http.Request) {
	e, err := h.entitlements.GetEntitlement(r.Context(), auth.UserIDFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View(h.now()))
}

// checkoutRequest is the JSON body of a checkout call.
type checkoutRequest struct {
	Plan string `json:"plan"`
}

// CreateCheckout starts a Stripe Checkout session for the requested plan.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.requireBilling(w, r) {
		return
	}

	var body checkoutRequest
	if err := decodeJSON(w, r, &body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	checkout, err := h.billing.StartCheckout(r.Context(), auth.UserIDFromRequest(r), body.Plan)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// portalResponse carries the billing portal link.
type portalResponse struct {
	URL string `json:"url"`
}

// OpenPortal returns a Stripe billing portal URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	if !h.requireBilling(w, r) {
		return
	}

	url, err := h.billing.PortalURL(r.Context(), auth.UserIDFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, portalResponse{URL: url})
}

// CancelSubscription cancels the caller's subscription immediately.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	if !h.requireBilling(w, r) {
		return
	}

	e, err := h.billing.CancelNow(r.Context(), auth.UserIDFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View(h.now()))
}

// requireBilling answers 503 when billing is not configured.
func (h *BillingHandler) requireBilling(w http.ResponseWriter, r *http.Request) bool {
	if h.billing != nil {
		return true
	}
	ErrorResponse(w, r, h.logger, domain.Unavailable(nil, "BillingHandler", "Billing is not configured."))
	return false
}
