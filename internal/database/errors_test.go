package database

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	driverErr := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: ErrTransient, want: true},
		{name: "typed", err: &TransientError{Op: "list identities", Err: driverErr}, want: true},
		{name: "wrapped typed", err: fmt.Errorf("rebuild: %w", &TransientError{Op: "x", Err: driverErr}), want: true},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "duplicate", err: ErrDuplicateIdentity, want: false},
		{name: "conflict", err: ErrConcurrentModification, want: false},
		{name: "other", err: driverErr, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientError_UnwrapsDriverError(t *testing.T) {
	driverErr := errors.New("deadlock detected")
	err := &TransientError{Op: "append descriptor", Err: driverErr}

	if !errors.Is(err, driverErr) {
		t.Error("expected driver error to be reachable through Unwrap")
	}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}
}
