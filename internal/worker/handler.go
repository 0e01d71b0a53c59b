package worker

import (
	"context"
	"errors"
	"fmt"
)

// JobHandler executes one job type. Deferred plan transitions and the
// monthly usage reset each have a handler in package jobs.
type JobHandler interface {
	// Type is the job type the handler is registered under.
	Type() string

	// Handle runs one attempt. A returned error is retried with backoff
	// until the job's attempts are exhausted, unless it is permanent.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that no retry can fix, such as a
// payload that does not decode.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so the job is failed without retry.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Permanentf is NewPermanentError with a formatted error.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
