package core

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_AssignsStableCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		textCode string
		status   int
	}{
		{name: "auth", err: stderrors.New("401 unauthorized"), textCode: ErrorAuth, status: http.StatusUnauthorized},
		{name: "transport", err: stderrors.New("dial tcp: connection refused"), textCode: ErrorTransport, status: http.StatusBadGateway},
		{name: "bad input", err: stderrors.New("name is required"), textCode: ErrorBadInput, status: http.StatusBadRequest},
		{name: "rich passthrough", err: NewOutOfOrderError(StageMint, StageDeploy), textCode: ErrorOutOfOrder, status: http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mapped := serviceErrorMapper(tc.err)
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, mapped.Code)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{name: "auth", err: NewAuthError("missing credentials", nil), is: IsAuthError},
		{name: "wrapped auth", err: WrapAuthError(stderrors.New("invalid_client"), "token exchange failed"), is: IsAuthError},
		{name: "transport", err: WrapTransportError(stderrors.New("eof"), "status check failed"), is: IsTransportError},
		{name: "timeout", err: NewTimeoutError(13, nil), is: IsTimeoutError},
		{name: "out of order", err: NewOutOfOrderError(StageMint, StageDeploy), is: IsOutOfOrderError},
		{name: "prerequisite", err: NewPrerequisiteError(StageMint, "tokenType.id"), is: IsPrerequisiteError},
		{name: "busy", err: NewBusyError(StageDeploy), is: IsBusyError},
		{name: "duplicate", err: NewDuplicateIDError("op-1"), is: IsDuplicateIDError},
		{name: "not found", err: NewNotFoundError("op-1"), is: IsNotFoundError},
		{name: "transition", err: NewInvalidTransitionError("op-1", StatusSucceeded, StatusPending), is: IsInvalidTransition},
		{name: "failed", err: NewOperationFailedError(OperationMint, "op-1"), is: IsOperationFailed},
		{name: "validation", err: NewValidationError("amount", "must be between 1 and 100"), is: IsValidationError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.is(tc.err) {
				t.Fatalf("expected predicate to match %v", tc.err)
			}
			if IsBusyError(tc.err) && tc.name != "busy" {
				t.Fatalf("expected busy predicate to stay specific")
			}
		})
	}
	if IsTimeoutError(nil) || TextCode(nil) != "" {
		t.Fatalf("expected nil error to match nothing")
	}
}

func TestNewTimeoutError_CarriesAttempts(t *testing.T) {
	err := NewTimeoutError(13, map[string]any{"operation_id": "op-1"})
	if !strings.Contains(err.Error(), "13 attempts") {
		t.Fatalf("expected attempt count in message, got %q", err.Error())
	}
	if err.Category != goerrors.CategoryOperation {
		t.Fatalf("expected operation category, got %q", err.Category)
	}
}

func TestServiceMethods_MapErrorsToStableServiceCodes(t *testing.T) {
	fixture, err := newServiceFixture()
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = fixture.svc.CreateTokenType(context.Background(), CreateTokenTypeRequest{Name: "Ekwel"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != ErrorPrerequisite {
		t.Fatalf("expected prerequisite text code, got %q", rich.TextCode)
	}

	_, err = fixture.svc.Transaction("missing")
	if !IsNotFoundError(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
