// Package storage defines the error kind used when a persistence collaborator fails.
// Callers distinguish "system degraded" (retry with backoff) from business outcomes with
// errors.Is(err, ErrUnavailable).
package storage

import "errors"

// ErrUnavailable reports that the backing store could not serve the request.
var ErrUnavailable = errors.New("storage unavailable")

// Error wraps a store failure with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "storage unavailable: " + e.Op
	}
	return "storage unavailable: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying store error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports true for ErrUnavailable so errors.Is works without losing the cause.
func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// Wrap returns nil when err is nil, err unchanged when it is already a storage error,
// and a *Error for op otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
