package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const metricsRealm = `Basic realm="podforge metrics", charset="UTF-8"`

// MetricsAuthMiddleware guards the Prometheus endpoint with HTTP basic auth.
// The endpoint exposes gate decisions and webhook outcomes by plan and event
// type, so production deployments are expected to set credentials.
type MetricsAuthMiddleware struct {
	username []byte
	password []byte
	enabled  bool
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware returns the guard. With neither credential set
// the endpoint is left open and a warning is logged once.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	m := &MetricsAuthMiddleware{
		username: []byte(username),
		password: []byte(password),
		enabled:  username != "" || password != "",
		logger:   logger,
	}
	if !m.enabled {
		logger.Warn("Metrics endpoint has no credentials and is publicly readable")
	}
	return m
}

// Handler wraps next. A disabled guard returns next unchanged.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		// Both comparisons always run.
		userOK := subtle.ConstantTimeCompare([]byte(user), m.username)
		passOK := subtle.ConstantTimeCompare([]byte(pass), m.password)
		if !ok || userOK&passOK != 1 {
			m.logger.Warn("Metrics request rejected", "ip", getClientIP(r), "has_credentials", ok)
			w.Header().Set("WWW-Authenticate", metricsRealm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
