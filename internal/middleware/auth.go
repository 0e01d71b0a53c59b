// Package middleware contains HTTP middleware for the podforge API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/DukeRupert/podforge/internal/auth"
	"github.com/DukeRupert/podforge/internal/handler"
)

const (
	// DefaultIdentityHeader carries the user id set by the authenticating proxy.
	DefaultIdentityHeader = "X-User-ID"

	// maxUserIDLength bounds identity header values.
	maxUserIDLength = 128
)

// =============================================================================
// Identity Middleware
// =============================================================================

// IdentityMiddleware reads the caller's identity from a trusted header.
//
// Authentication itself happens upstream; this service only trusts the
// header value the proxy forwards.
type IdentityMiddleware struct {
	header string
	logger *slog.Logger
}

// NewIdentityMiddleware creates an IdentityMiddleware. An empty header uses
// DefaultIdentityHeader.
func NewIdentityMiddleware(header string, logger *slog.Logger) *IdentityMiddleware {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return &IdentityMiddleware{header: header, logger: logger}
}

// WithIdentity stores the user id from the identity header in the request
// context. Requests without a usable value continue anonymously.
//
// The user id can be retrieved in handlers using:
//
//	userID := auth.UserIDFromRequest(r)
func (m *IdentityMiddleware) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(m.header))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !validUserID(userID) {
			m.logger.Warn("ignoring malformed identity header", "header", m.header, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

// RequireIdentity rejects anonymous requests with 401.
//
// IMPORTANT: This middleware must be used AFTER WithIdentity in the chain.
func (m *IdentityMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserIDFromRequest(r) == "" {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validUserID rejects over-long values and control characters.
func validUserID(id string) bool {
	if len(id) > maxUserIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, identity.WithIdentity, identity.RequireIdentity)
//	mux.Handle("GET /api/entitlement", stack(entitlementHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&IdentityMiddleware{}).WithIdentity
	_ func(http.Handler) http.Handler = (&IdentityMiddleware{}).RequireIdentity
)
