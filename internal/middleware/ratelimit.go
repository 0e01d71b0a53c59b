package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/DukeRupert/podforge/internal/auth"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/handler"
	"github.com/DukeRupert/podforge/internal/ratelimit"
)

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// Limiter admits calls per (kind, subject) over fixed windows.
type Limiter interface {
	Admit(ctx context.Context, kind domain.ActionKind, subject string) (ratelimit.Result, error)
}

// RateLimitMiddleware limits a route group through the shared limiter.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
type RateLimitMiddleware struct {
	limiter Limiter
	kind    domain.ActionKind
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a middleware counting requests under kind.
func NewRateLimitMiddleware(limiter Limiter, kind domain.ActionKind, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		kind:    kind,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests. A limiter failure
// rejects the request.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	const op = "RateLimitMiddleware.Limit"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := auth.UserIDFromRequest(r)
		if subject == "" {
			subject = "ip:" + getClientIP(r)
		}

		res, err := m.limiter.Admit(r.Context(), m.kind, subject)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}
		if !res.OK {
			m.logger.Warn("rate limit exceeded",
				"kind", m.kind,
				"subject", subject,
				"path", r.URL.Path,
				"method", r.Method,
			)
			handler.ErrorResponse(w, r, m.logger, domain.RateLimited(op, res.RetryAt))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
