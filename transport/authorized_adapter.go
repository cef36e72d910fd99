package transport

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mintflow/core"
)

// AuthorizedAdapter asks the token source for a fresh bearer token before
// every request and forwards it to the wrapped adapter.
type AuthorizedAdapter struct {
	Base   Adapter
	Tokens core.TokenSource
}

func NewAuthorizedAdapter(base Adapter, tokens core.TokenSource) *AuthorizedAdapter {
	if base == nil {
		base = NewRESTAdapter(nil)
	}
	return &AuthorizedAdapter{Base: base, Tokens: tokens}
}

func (a *AuthorizedAdapter) Kind() string {
	if a == nil || a.Base == nil {
		return KindREST
	}
	return a.Base.Kind()
}

func (a *AuthorizedAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Base == nil {
		return Response{}, failure(goerrors.CategoryInternal, http.StatusInternalServerError,
			"transport: authorized adapter requires a base adapter", nil, nil)
	}
	if a.Tokens == nil {
		return Response{}, core.NewAuthError("transport: no token source configured", nil)
	}
	token, err := a.Tokens.EnsureFreshToken(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := SignBearer(&req, token); err != nil {
		return Response{}, err
	}
	return a.Base.Do(ctx, req)
}

// SignBearer sets the Authorization header on a copy of the request headers.
func SignBearer(req *Request, token string) error {
	if req == nil {
		return failure(goerrors.CategoryBadInput, http.StatusBadRequest, "transport: request is required", nil, nil)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.NewAuthError("transport: access token is required for bearer signing", nil)
	}
	headers := make(map[string]string, len(req.Headers)+1)
	for key, value := range req.Headers {
		headers[key] = value
	}
	headers["Authorization"] = "Bearer " + token
	req.Headers = headers
	return nil
}

var _ Adapter = (*AuthorizedAdapter)(nil)
