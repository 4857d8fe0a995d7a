// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestErrorCodeValues verifies all error codes have non-empty values.
func TestErrorCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
	}{
		{"internal", ErrInternal},
		{"not found", ErrNotFound},
		{"validation", ErrValidation},
		{"database", ErrDatabase},
		{"migration", ErrMigration},
		{"sync not configured", ErrSyncNotConfigured},
		{"storage tx", ErrStorageTx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == "" {
				t.Errorf("error code %s should not be empty", tt.name)
			}
		})
	}
}

func TestAppErrorError(t *testing.T) {
	appErr := New(ErrValidation, "workspace id is required")
	msg := appErr.Error()
	if !strings.Contains(msg, string(ErrValidation)) {
		t.Errorf("Error() = %q, want it to contain %q", msg, ErrValidation)
	}
	if !strings.Contains(msg, "workspace id is required") {
		t.Errorf("Error() = %q, want it to contain the message", msg)
	}
}

func TestAppErrorErrorWithWrapped(t *testing.T) {
	inner := errors.New("disk I/O error")
	appErr := Wrap(ErrStorageTx, "push batch aborted", inner)
	msg := appErr.Error()
	if !strings.Contains(msg, "disk I/O error") {
		t.Errorf("Error() = %q, want it to contain the wrapped error", msg)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("connection lost")
	appErr := Wrap(ErrDatabase, "query failed", inner)
	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if appErr.Unwrap() != inner {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), inner)
	}
}

func TestIs(t *testing.T) {
	appErr := New(ErrStorageTx, "batch rolled back")
	if !Is(appErr, ErrStorageTx) {
		t.Error("Is should match the error's own code")
	}
	if Is(appErr, ErrValidation) {
		t.Error("Is should not match a different code")
	}
	if Is(errors.New("plain"), ErrStorageTx) {
		t.Error("Is should not match a non-AppError")
	}
}
