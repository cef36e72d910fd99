package core

import (
	"context"
	"strings"
	"sync"
	"time"
)

// TokenFreshness captures the expiry flags derived from a token state.
type TokenFreshness struct {
	ExpiresAt   *time.Time
	HasIdentity bool
	HasToken    bool
	IsExpired   bool
	NeedsRenew  bool
	Remaining   time.Duration
}

// ResolveTokenFreshness evaluates whether the stored token is inside the
// refresh margin at now.
func ResolveTokenFreshness(now time.Time, state TokenState, margin time.Duration) TokenFreshness {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	out := TokenFreshness{
		HasIdentity: state.Identity != nil && state.Identity.Complete(),
		HasToken:    state.HasToken(),
	}
	if !out.HasToken {
		out.NeedsRenew = true
		return out
	}
	expiresAt := state.ExpiresAt.UTC()
	out.ExpiresAt = &expiresAt
	out.Remaining = expiresAt.Sub(now)
	out.IsExpired = !expiresAt.After(now)
	out.NeedsRenew = out.Remaining < margin
	return out
}

// TokenLifecycle owns the client identity and the current access token.
// Issuance runs outside the lock, so two concurrent refreshes both complete
// and the later one wins.
type TokenLifecycle struct {
	mu     sync.RWMutex
	state  TokenState
	issuer TokenIssuer
	store  CredentialStateStore
	margin time.Duration
	now    func() time.Time
	logger Logger
}

func NewTokenLifecycle(issuer TokenIssuer, store CredentialStateStore, margin time.Duration, logger Logger) *TokenLifecycle {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &TokenLifecycle{
		issuer: issuer,
		store:  store,
		margin: margin,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (t *TokenLifecycle) Load(ctx context.Context) error {
	if t == nil || t.store == nil {
		return nil
	}
	state, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.state = cloneTokenState(state)
	t.mu.Unlock()
	return nil
}

func (t *TokenLifecycle) Snapshot() TokenState {
	if t == nil {
		return TokenState{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneTokenState(t.state)
}

func (t *TokenLifecycle) Freshness() TokenFreshness {
	return ResolveTokenFreshness(t.now(), t.Snapshot(), t.margin)
}

// SetIdentity stores the client credentials. Any token issued for a previous
// identity is dropped.
func (t *TokenLifecycle) SetIdentity(ctx context.Context, clientID string, secret string) error {
	credentials := Credentials{
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(secret),
	}
	if credentials.ClientID == "" {
		return NewValidationError("client_id", "client id is required")
	}
	if credentials.ClientSecret == "" {
		return NewValidationError("client_secret", "client secret is required")
	}

	t.mu.Lock()
	previous := cloneTokenState(t.state)
	next := TokenState{Identity: &credentials}
	if previous.Identity != nil && *previous.Identity == credentials {
		next = cloneTokenState(previous)
		next.Identity = &credentials
	}
	t.state = next
	t.mu.Unlock()

	if err := t.persist(ctx, next); err != nil {
		t.mu.Lock()
		t.state = previous
		t.mu.Unlock()
		return err
	}
	return nil
}

// AcquireToken issues a new token for the stored identity.
func (t *TokenLifecycle) AcquireToken(ctx context.Context) (string, error) {
	identity := t.Snapshot().Identity
	if identity == nil || !identity.Complete() {
		return "", NewAuthError("auth: no identity stored, authenticate first", nil)
	}
	if t.issuer == nil {
		return "", NewAuthError("auth: token issuer is not configured", nil)
	}

	issued, err := t.issuer.IssueToken(ctx, *identity)
	if err != nil {
		if TextCode(err) != "" {
			return "", err
		}
		return "", WrapAuthError(err, "auth: token issuance failed")
	}
	token := strings.TrimSpace(issued.Token)
	if token == "" {
		return "", NewAuthError("auth: token issuer returned an empty token", nil)
	}

	issuedAt := t.now().UTC()
	expiresAt := issuedAt.Add(issued.TTL)

	t.mu.Lock()
	if t.state.Identity == nil || *t.state.Identity != *identity {
		// identity changed or was cleared while the request was in flight
		t.mu.Unlock()
		return "", NewAuthError("auth: identity changed during token issuance", nil)
	}
	previous := cloneTokenState(t.state)
	t.state.Token = token
	t.state.TokenType = strings.TrimSpace(issued.TokenType)
	t.state.ExpiresAt = &expiresAt
	t.state.IssuedAt = &issuedAt
	next := cloneTokenState(t.state)
	t.mu.Unlock()

	if err := t.persist(ctx, next); err != nil {
		t.mu.Lock()
		t.state = previous
		t.mu.Unlock()
		return "", err
	}
	return token, nil
}

// EnsureFreshToken returns a token valid beyond the refresh margin, renewing
// it when needed. A failed renewal falls back to the stale token.
func (t *TokenLifecycle) EnsureFreshToken(ctx context.Context) (string, error) {
	if t == nil {
		return "", NewAuthError("auth: token lifecycle is not configured", nil)
	}
	state := t.Snapshot()
	freshness := ResolveTokenFreshness(t.now(), state, t.margin)
	if !freshness.NeedsRenew {
		return state.Token, nil
	}

	token, err := t.AcquireToken(ctx)
	if err == nil {
		return token, nil
	}
	if !freshness.HasToken {
		return "", err
	}

	fields := map[string]any{"error": err.Error(), "expired": freshness.IsExpired}
	if freshness.ExpiresAt != nil {
		fields["expires_at"] = freshness.ExpiresAt.Format(time.RFC3339)
	}
	t.log(ctx, "token refresh failed, using stale token", fields)
	return state.Token, nil
}

// Clear wipes identity and token together.
func (t *TokenLifecycle) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.state = TokenState{}
	t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	return t.store.Clear(ctx)
}

func (t *TokenLifecycle) persist(ctx context.Context, state TokenState) error {
	if t.store == nil {
		return nil
	}
	return t.store.Save(ctx, state)
}

func (t *TokenLifecycle) log(ctx context.Context, message string, fields map[string]any) {
	if t.logger == nil {
		return
	}
	logger := t.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Warn(message, flattenFields(fields)...)
}

func cloneTokenState(in TokenState) TokenState {
	out := TokenState{
		Token:     in.Token,
		TokenType: in.TokenType,
		ExpiresAt: cloneTimePointer(in.ExpiresAt),
		IssuedAt:  cloneTimePointer(in.IssuedAt),
	}
	if in.Identity != nil {
		identity := *in.Identity
		out.Identity = &identity
	}
	return out
}

func cloneTimePointer(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := in.UTC()
	return &out
}
