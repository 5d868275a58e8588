package core

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_ClassifiesPlainErrors(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		status   int
	}{
		{err: errors.New("adapter not found"), textCode: ErrorNotFound, status: http.StatusNotFound},
		{err: errors.New("slack is already registered"), textCode: ErrorDuplicateRegistration, status: http.StatusConflict},
		{err: errors.New("signature mismatch"), textCode: ErrorInvalidSignature, status: http.StatusUnauthorized},
		{err: errors.New("channel is required"), textCode: ErrorBadInput, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		if mapped.TextCode != tc.textCode || mapped.Code != tc.status {
			t.Fatalf("%q: expected %s/%d, got %s/%d", tc.err, tc.textCode, tc.status, mapped.TextCode, mapped.Code)
		}
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestMapError_KeepsRichEnvelope(t *testing.T) {
	mapped := MapError(SyncFinalizedError("op_1", SyncStatusCompleted))
	if mapped.TextCode != ErrorSyncFinalized || mapped.Category != goerrors.CategoryConflict {
		t.Fatalf("expected finalized conflict, got %#v", mapped)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", mapped.Code)
	}
}

func TestDeliveryErrorCarriesCauseAndAttempts(t *testing.T) {
	err := DeliveryError("zapier", 2, TimeoutError("zapier", 2))
	if !HasErrorCode(err, ErrorDeliveryFailure) {
		t.Fatalf("expected delivery failure code, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempt(s)") || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected attempts and cause in message, got %q", err.Error())
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata["cause"] != ErrorTimeout {
		t.Fatalf("expected timeout cause metadata, got %#v", rich)
	}
}

func TestInitializationErrorIncludesCause(t *testing.T) {
	err := InitializationError("slack", errBoom)
	if !HasErrorCode(err, ErrorInitializationFailure) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected initialization error %v", err)
	}
	if HasErrorCode(errBoom, ErrorInitializationFailure) {
		t.Fatalf("expected plain errors to carry no code")
	}
}

func TestFieldAndDependencyErrors(t *testing.T) {
	field := FieldError("query", "limit", "limit must be >= 0")
	var rich *goerrors.Error
	if !goerrors.As(field, &rich) {
		t.Fatalf("expected envelope, got %T", field)
	}
	if rich.Code != 400 || rich.TextCode != ErrorBadInput || rich.Category != goerrors.CategoryValidation {
		t.Fatalf("unexpected field error %+v", rich)
	}
	if fields := rich.AllValidationErrors(); len(fields) != 1 || fields[0].Field != "limit" {
		t.Fatalf("expected limit field error, got %+v", fields)
	}

	missing := MissingDependencyError("command", "sync service")
	if !HasErrorCode(missing, ErrorInternal) || missing.Error() == "" {
		t.Fatalf("expected internal error, got %v", missing)
	}
	if ValidationError(nil, "noop") != nil {
		t.Fatalf("expected nil passthrough")
	}
	if !HasErrorCode(ValidationError(errors.New("bad kind"), "command: invalid sync request"), ErrorBadInput) {
		t.Fatalf("expected wrapped validation to carry bad input code")
	}
}
