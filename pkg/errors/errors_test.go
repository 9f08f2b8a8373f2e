package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorString(t *testing.T) {
	err := NewConflictError("room already exists")
	if err.Error() != "CONFLICT: room already exists" {
		t.Fatalf("unexpected error string: %q", err.Error())
	}

	wrapped := WrapError(errors.New("boom"), ErrCodeInternal, "registry failure", http.StatusInternalServerError)
	if wrapped.Error() != "INTERNAL_ERROR: registry failure (caused by: boom)" {
		t.Fatalf("unexpected wrapped error string: %q", wrapped.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := WrapError(cause, ErrCodeNotFound, "room", http.StatusNotFound)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through AppError")
	}
}

func TestGetAppError_ExtractsFromChain(t *testing.T) {
	app := NewNotFoundError("room")
	chained := fmt.Errorf("handler: %w", app)

	got := GetAppError(chained)
	if got == nil {
		t.Fatal("expected AppError from chain")
	}
	if got.Code != ErrCodeNotFound {
		t.Fatalf("unexpected code %q", got.Code)
	}
	if got.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected status %d", got.HTTPStatus)
	}
}

func TestGetAppError_NilOnPlainError(t *testing.T) {
	if GetAppError(errors.New("plain")) != nil {
		t.Fatal("expected nil for plain error")
	}
	if GetAppError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestConstructors_StatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   ErrorCode
	}{
		{NewInvalidInputError("x"), http.StatusBadRequest, ErrCodeInvalidInput},
		{NewNotFoundError("room"), http.StatusNotFound, ErrCodeNotFound},
		{NewConflictError("x"), http.StatusConflict, ErrCodeConflict},
		{NewRateLimitError(), http.StatusTooManyRequests, ErrCodeRateLimit},
		{NewInternalError("x"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		if tc.err.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.err.Code, tc.status, tc.err.HTTPStatus)
		}
		if tc.err.Code != tc.code {
			t.Fatalf("expected code %q, got %q", tc.code, tc.err.Code)
		}
	}
}

func TestWithContext(t *testing.T) {
	err := NewConflictError("producer slot taken").
		WithContext("room_id", "r1").
		WithContext("workspace_id", "w1")

	if err.Context["room_id"] != "r1" || err.Context["workspace_id"] != "w1" {
		t.Fatalf("unexpected context: %#v", err.Context)
	}
}
