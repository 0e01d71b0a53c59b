package domain

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., already canceled)
	ERATELIMIT    = "rate_limit"   // Rate limit exceeded
	EPAYMENT      = "payment"      // Paid plan required
	EQUOTA        = "quota"        // Monthly quota exhausted
	ESIGNATURE    = "signature"    // Webhook signature rejected
	EUNAVAILABLE  = "unavailable"  // Dependency (store, processor) unavailable
	EINTERNAL     = "internal"     // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "Gate.Authorize")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Unavailable reports a failing dependency such as the limiter store.
func Unavailable(err error, op, message string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RetryError carries the instant after which a rate-limited call may be retried.
type RetryError struct {
	RetryAt time.Time
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry at %s", e.RetryAt.UTC().Format(time.RFC3339))
}

// RateLimited creates a rate limit error carrying the retry instant.
func RateLimited(op string, retryAt time.Time) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
		Err:     &RetryError{RetryAt: retryAt},
	}
}

// RetryAt extracts the retry instant from a rate limit error.
func RetryAt(err error) (time.Time, bool) {
	var re *RetryError
	if errors.As(err, &re) {
		return re.RetryAt, true
	}
	return time.Time{}, false
}

// SubscriptionRequired creates an error for a feature that needs an active paid plan.
func SubscriptionRequired(op, message string) *Error {
	if message == "" {
		message = "An active subscription is required for this feature."
	}
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: message,
	}
}

// QuotaError describes an exhausted monthly quota.
type QuotaError struct {
	Plan    Plan
	Used    int
	Ceiling int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s plan quota of %d reached (%d used)", e.Plan, e.Ceiling, e.Used)
}

// QuotaExceeded creates a quota error for the given plan and usage.
func QuotaExceeded(op string, plan Plan, used, ceiling int) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("Monthly limit of %d actions reached on the %s plan.", ceiling, plan),
		Err:     &QuotaError{Plan: plan, Used: used, Ceiling: ceiling},
	}
}

// SignatureInvalid wraps a webhook verification failure.
func SignatureInvalid(op string, err error) *Error {
	return &Error{
		Code:    ESIGNATURE,
		Op:      op,
		Message: "invalid webhook signature",
		Err:     err,
	}
}

// SubscriptionNotFound reports a missing subscription, customer or entitlement record.
func SubscriptionNotFound(op, ref string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("no subscription found for %q", ref),
	}
}

// IsNotFound reports whether err carries ENOTFOUND.
func IsNotFound(err error) bool {
	return ErrorCode(err) == ENOTFOUND
}
