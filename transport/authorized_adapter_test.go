package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-mintflow/core"
)

type stubTokenSource struct {
	fn    func(context.Context) (string, error)
	calls int
}

func (s *stubTokenSource) EnsureFreshToken(ctx context.Context) (string, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(ctx)
	}
	return "token-123", nil
}

func TestAuthorizedAdapter_SetsBearerHeader(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tokens := &stubTokenSource{}
	adapter := NewAuthorizedAdapter(NewRESTAdapter(server.Client()), tokens)
	headers := map[string]string{"Accept": "application/json"}
	res, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL, Headers: headers})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if seen != "Bearer token-123" {
		t.Fatalf("expected bearer header, got %q", seen)
	}
	if _, ok := headers["Authorization"]; ok {
		t.Fatalf("expected caller headers untouched")
	}
	if tokens.calls != 1 {
		t.Fatalf("expected one token lookup per request, got %d", tokens.calls)
	}
}

func TestAuthorizedAdapter_TokenErrorSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	boom := core.NewAuthError("no credentials", nil)
	adapter := NewAuthorizedAdapter(NewRESTAdapter(server.Client()), &stubTokenSource{
		fn: func(context.Context) (string, error) { return "", boom },
	})
	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if !errors.Is(err, boom) && !core.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if called {
		t.Fatalf("expected no request without a token")
	}
}

func TestSignBearer_RejectsEmptyToken(t *testing.T) {
	req := Request{}
	if err := SignBearer(&req, "  "); !core.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
