package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no identity has the requested external id.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateIdentity is returned when creating an identity whose external id is taken.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrConcurrentModification is returned when an append races another write to the same identity.
	ErrConcurrentModification = errors.New("identity was modified concurrently")
	// ErrTransient marks store failures that may succeed when retried.
	ErrTransient = errors.New("transient store failure")
)

// TransientError wraps a driver error that is worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrTransient, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransient) hold for every TransientError.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// IsRetryable reports whether err is a transient store failure.
// Duplicate, not-found and concurrent modification errors are never retryable here.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
