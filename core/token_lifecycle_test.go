package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLifecycle(issuer *stubTokenIssuer, store CredentialStateStore, clock *testClock) *TokenLifecycle {
	lifecycle := NewTokenLifecycle(issuer, store, DefaultRefreshMargin, stubLogger{})
	lifecycle.now = clock.Now
	return lifecycle
}

func TestResolveTokenFreshness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		value := now.Add(d)
		return &value
	}
	tests := []struct {
		name       string
		state      TokenState
		needsRenew bool
		expired    bool
	}{
		{name: "no token", state: TokenState{}, needsRenew: true},
		{name: "fresh", state: TokenState{Token: "t", ExpiresAt: at(time.Minute)}, needsRenew: false},
		{name: "inside margin", state: TokenState{Token: "t", ExpiresAt: at(10 * time.Second)}, needsRenew: true},
		{name: "exactly at margin", state: TokenState{Token: "t", ExpiresAt: at(30 * time.Second)}, needsRenew: false},
		{name: "expired", state: TokenState{Token: "t", ExpiresAt: at(-time.Second)}, needsRenew: true, expired: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			freshness := ResolveTokenFreshness(now, tc.state, 30*time.Second)
			if freshness.NeedsRenew != tc.needsRenew {
				t.Fatalf("expected needsRenew=%v, got %v", tc.needsRenew, freshness.NeedsRenew)
			}
			if freshness.IsExpired != tc.expired {
				t.Fatalf("expected expired=%v, got %v", tc.expired, freshness.IsExpired)
			}
		})
	}
}

func TestTokenLifecycle_AcquireRequiresIdentity(t *testing.T) {
	clock := newTestClock()
	issuer := &stubTokenIssuer{}
	lifecycle := newTestLifecycle(issuer, &memoryCredentialStore{}, clock)

	_, err := lifecycle.AcquireToken(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if issuer.Calls() != 0 {
		t.Fatalf("expected no issuer call without identity")
	}
}

func TestTokenLifecycle_RefreshInsideMarginIssuesOnce(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	issuer := &stubTokenIssuer{}
	lifecycle := newTestLifecycle(issuer, &memoryCredentialStore{}, clock)

	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	issuer.fn = func(context.Context, Credentials) (IssuedToken, error) {
		return IssuedToken{Token: "short", TTL: 10 * time.Second}, nil
	}
	if _, err := lifecycle.AcquireToken(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	issuer.fn = nil
	before := issuer.Calls()

	token, err := lifecycle.EnsureFreshToken(ctx)
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if got := issuer.Calls() - before; got != 1 {
		t.Fatalf("expected exactly one issuance, got %d", got)
	}
	if token == "short" {
		t.Fatalf("expected a renewed token")
	}

	again, err := lifecycle.EnsureFreshToken(ctx)
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if again != token || issuer.Calls()-before != 1 {
		t.Fatalf("expected fresh token to be reused without issuance")
	}
}

func TestTokenLifecycle_FailedRefreshFallsBackToStaleToken(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	issuer := &stubTokenIssuer{}
	lifecycle := newTestLifecycle(issuer, &memoryCredentialStore{}, clock)
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	stale, err := lifecycle.AcquireToken(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(6 * time.Minute)
	issuer.fn = func(context.Context, Credentials) (IssuedToken, error) {
		return IssuedToken{}, NewTransportError("token endpoint down", nil)
	}

	token, err := lifecycle.EnsureFreshToken(ctx)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if token != stale {
		t.Fatalf("expected stale token %q, got %q", stale, token)
	}
}

func TestTokenLifecycle_FailedRefreshFallsBackToExpiredToken(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	issuer := &stubTokenIssuer{}
	lifecycle := newTestLifecycle(issuer, &memoryCredentialStore{}, clock)
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	expired, err := lifecycle.AcquireToken(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(48 * time.Hour)
	if freshness := lifecycle.Freshness(); !freshness.IsExpired {
		t.Fatalf("expected token to be expired, got %+v", freshness)
	}
	issuer.fn = func(context.Context, Credentials) (IssuedToken, error) {
		return IssuedToken{}, NewTransportError("token endpoint down", nil)
	}

	token, err := lifecycle.EnsureFreshToken(ctx)
	if err != nil {
		t.Fatalf("expected expired token fallback, got %v", err)
	}
	if token != expired {
		t.Fatalf("expected expired token %q, got %q", expired, token)
	}
}

func TestTokenLifecycle_FailedFirstIssuanceReturnsError(t *testing.T) {
	ctx := context.Background()
	issuer := &stubTokenIssuer{fn: func(context.Context, Credentials) (IssuedToken, error) {
		return IssuedToken{}, errors.New("invalid_client")
	}}
	lifecycle := newTestLifecycle(issuer, &memoryCredentialStore{}, newTestClock())
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	_, err := lifecycle.EnsureFreshToken(ctx)
	if !IsAuthError(err) {
		t.Fatalf("expected wrapped auth error, got %v", err)
	}
}

func TestTokenLifecycle_IdentityChangeDropsToken(t *testing.T) {
	ctx := context.Background()
	lifecycle := newTestLifecycle(&stubTokenIssuer{}, &memoryCredentialStore{}, newTestClock())
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if _, err := lifecycle.AcquireToken(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set same identity: %v", err)
	}
	if !lifecycle.Snapshot().HasToken() {
		t.Fatalf("expected token kept for same identity")
	}
	if err := lifecycle.SetIdentity(ctx, "other", "secret"); err != nil {
		t.Fatalf("set other identity: %v", err)
	}
	if lifecycle.Snapshot().HasToken() {
		t.Fatalf("expected token dropped for a new identity")
	}
}

func TestTokenLifecycle_PersistsAndClears(t *testing.T) {
	ctx := context.Background()
	store := &memoryCredentialStore{}
	clock := newTestClock()
	lifecycle := newTestLifecycle(&stubTokenIssuer{}, store, clock)
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	token, err := lifecycle.AcquireToken(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	restored := newTestLifecycle(&stubTokenIssuer{}, store, clock)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Snapshot().Token != token {
		t.Fatalf("expected restored token")
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if restored.Snapshot().Identity != nil || store.state.Identity != nil {
		t.Fatalf("expected identity wiped in memory and store")
	}
}

func TestTokenLifecycle_SaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := &memoryCredentialStore{saveErr: boom}
	lifecycle := newTestLifecycle(&stubTokenIssuer{}, store, newTestClock())
	if err := lifecycle.SetIdentity(ctx, "client", "secret"); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if lifecycle.Snapshot().Identity != nil {
		t.Fatalf("expected identity rolled back")
	}
}
