package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrInternalError, "store failed").
		WithCause(root).
		WithHTTPStatus(500).
		WithRetryable(true)

	if GetErrorCode(err) != ErrInternalError {
		t.Fatalf("expected code %s, got %s", ErrInternalError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewInvalidRequestError("turns must not be empty")
	wrapped := fmt.Errorf("optimize: %w", inner)

	if !IsErrorCode(wrapped, ErrInvalidRequest) {
		t.Fatalf("expected wrapped INVALID_REQUEST")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
	if IsRetryable(wrapped) {
		t.Fatalf("validation errors are not retryable")
	}
}
