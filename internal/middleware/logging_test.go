package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func logRequest(t *testing.T, h http.HandlerFunc, req *http.Request) string {
	t.Helper()
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.168.1.1:12345"
	}
	mw.Handler(h).ServeHTTP(httptest.NewRecorder(), req)
	return buf.String()
}

func TestRequestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantLevel  string
	}{
		{name: "admitted", status: http.StatusOK, wantLevel: "level=INFO"},
		{name: "not found", status: http.StatusNotFound, wantLevel: "level=INFO"},
		{name: "subscription required", status: http.StatusPaymentRequired, wantLevel: "level=WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "90", wantLevel: "level=WARN"},
		{name: "store unavailable", status: http.StatusServiceUnavailable, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := logRequest(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}, httptest.NewRequest("POST", "/api/generate/audio", nil))

			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("expected %s, got: %s", tt.wantLevel, out)
			}
			for _, want := range []string{"method=POST", "path=/api/generate/audio", "duration_ms=", "ip=192.168.1.1"} {
				if !strings.Contains(out, want) {
					t.Errorf("log should contain %q, got: %s", want, out)
				}
			}
			if tt.retryAfter != "" && !strings.Contains(out, "retry_after="+tt.retryAfter) {
				t.Errorf("log should carry the retry hint, got: %s", out)
			}
			if tt.retryAfter == "" && strings.Contains(out, "retry_after") {
				t.Errorf("unexpected retry hint, got: %s", out)
			}
		})
	}
}

func TestRequestLoggingMiddleware_ClientDetails(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/entitlement", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.1")
	req.Header.Set("User-Agent", "podforge-ios/3.1")

	out := logRequest(t, func(w http.ResponseWriter, r *http.Request) {}, req)

	if !strings.Contains(out, "203.0.113.50") {
		t.Errorf("log should contain the forwarded client ip, got: %s", out)
	}
	if !strings.Contains(out, "podforge-ios/3.1") {
		t.Errorf("log should contain the user agent, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_LogsUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	identity := NewIdentityMiddleware("", logger)
	mw := NewRequestLoggingMiddleware(logger)

	wrapped := Stack(identity.WithIdentity, mw.Handler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	req := httptest.NewRequest("POST", "/api/generate/audio", nil)
	req.Header.Set(DefaultIdentityHeader, "user_42")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "user_id=user_42") {
		t.Errorf("log should contain user id, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_QuietPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/files/artifacts/user_1/audio/a.mp3"} {
		t.Run(path, func(t *testing.T) {
			out := logRequest(t, func(w http.ResponseWriter, r *http.Request) {}, httptest.NewRequest("GET", path, nil))
			if out != "" {
				t.Errorf("expected no log line, got: %s", out)
			}
		})
	}
}

func TestRequestLoggingMiddleware_PassesResponseThrough(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response body"))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/api/podcasts", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Error("custom header should be preserved")
	}
	if rec.Body.String() != "response body" {
		t.Errorf("response body should be preserved, got: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "status=201") {
		t.Errorf("log should contain the written status, got: %s", buf.String())
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		want     string
	}{
		{"no query", "", "/billing/success"},
		{"harmless", "plan=Pro", "/billing/success?plan=Pro"},
		{"checkout session", "session_id=cs_test_123&plan=Pro", "/billing/success?session_id=[REDACTED]&plan=Pro"},
		{"case insensitive", "Token=abc", "/billing/success?Token=[REDACTED]"},
		{"valueless dropped", "debug&plan=Pro", "/billing/success?plan=Pro"},
		{"only valueless", "debug", "/billing/success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath("/billing/success", tt.rawQuery); got != tt.want {
				t.Errorf("sanitizePath() = %q, want %q", got, tt.want)
			}
		})
	}
}
