// Package auth carries the caller's identity through a request context.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// userIDContextKey is the key used to store the authenticated user id in context.
const userIDContextKey contextKey = "user_id"

// UserID returns the authenticated user id, or "" for an anonymous caller.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// UserIDFromRequest is UserID for the request's context.
func UserIDFromRequest(r *http.Request) string {
	return UserID(r.Context())
}

// WithUserID stores userID in the context.
//
// This is typically called by the identity middleware once the upstream
// authentication layer has vouched for the caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
