package devkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-mintflow/transport"
)

// TransportScript is one canned ledger exchange.
type TransportScript struct {
	Response transport.Response
	Err      error
}

// FakeTransportAdapter replays scripts in order and keeps repeating the last
// one. Every request is recorded for assertions.
type FakeTransportAdapter struct {
	kind string

	mu       sync.Mutex
	scripts  []TransportScript
	requests []transport.Request
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.ToLower(strings.TrimSpace(kind)),
		scripts: scripts,
	}
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	if a == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake transport is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, copyRequest(req))
	if len(a.scripts) == 0 {
		return transport.Response{StatusCode: http.StatusOK, Headers: map[string]string{}}, nil
	}
	script := a.scripts[min(len(a.requests), len(a.scripts))-1]
	return copyResponse(script.Response), script.Err
}

// Requests returns copies of everything sent so far.
func (a *FakeTransportAdapter) Requests() []transport.Request {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]transport.Request, len(a.requests))
	for i, req := range a.requests {
		out[i] = copyRequest(req)
	}
	return out
}

func copyRequest(req transport.Request) transport.Request {
	req.Headers = maps.Clone(req.Headers)
	req.Query = maps.Clone(req.Query)
	req.Body = bytes.Clone(req.Body)
	return req
}

func copyResponse(res transport.Response) transport.Response {
	res.Headers = maps.Clone(res.Headers)
	res.Metadata = maps.Clone(res.Metadata)
	res.Body = bytes.Clone(res.Body)
	return res
}

var _ transport.Adapter = (*FakeTransportAdapter)(nil)

// JSONScript answers with value encoded as JSON.
func JSONScript(status int, value any) TransportScript {
	body, err := json.Marshal(value)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode script body: %w", err)}
	}
	return TransportScript{Response: transport.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}}
}

// Envelope wraps result in the ledger API's {success, result} shape.
func Envelope(result any) map[string]any {
	return map[string]any{"success": true, "result": result}
}
