package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	KindREST = "rest"

	defaultRequestTimeout       = 30 * time.Second
	defaultResponseLimit  int64 = 4 << 20
	headerAccept                = "Accept"
	headerContentType           = "Content-Type"
	mediaTypeJSON               = "application/json"
)

type RESTOption func(*RESTAdapter)

// WithResponseLimit caps how many response bytes are read per call.
func WithResponseLimit(limit int64) RESTOption {
	return func(a *RESTAdapter) {
		if limit > 0 {
			a.responseLimit = limit
		}
	}
}

// RESTAdapter sends ledger API calls through resty and hands back the raw
// status and body. Non-2xx statuses are left for the caller to classify.
type RESTAdapter struct {
	client        *resty.Client
	responseLimit int64
}

// NewRESTAdapter wraps httpClient, or a client with a 30s timeout when nil.
func NewRESTAdapter(httpClient *http.Client, opts ...RESTOption) *RESTAdapter {
	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New().SetTimeout(defaultRequestTimeout)
	}
	client.SetHeader(headerAccept, mediaTypeJSON)
	adapter := &RESTAdapter{client: client, responseLimit: defaultResponseLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.client == nil {
		return Response{}, failure(goerrors.CategoryInternal, http.StatusInternalServerError,
			"transport: rest adapter is not configured", nil, nil)
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return Response{}, failure(goerrors.CategoryBadInput, http.StatusBadRequest,
			"transport: request url is required", nil, nil)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	call := a.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for key, value := range req.Query {
		if key = strings.TrimSpace(key); key != "" {
			call.SetQueryParam(key, strings.TrimSpace(value))
		}
	}
	for key, value := range req.Headers {
		if key = strings.TrimSpace(key); key != "" {
			call.SetHeader(key, strings.TrimSpace(value))
		}
	}
	if len(req.Body) > 0 {
		if call.Header.Get(headerContentType) == "" {
			call.SetHeader(headerContentType, mediaTypeJSON)
		}
		call.SetBody(req.Body)
	}

	started := time.Now()
	res, err := call.Execute(method, target)
	meta := map[string]any{"method": method, "url": target}
	if err != nil {
		return Response{}, failure(goerrors.CategoryExternal, http.StatusBadGateway,
			"transport: ledger request failed", err, meta)
	}
	raw := res.RawBody()
	if raw == nil {
		return Response{}, failure(goerrors.CategoryExternal, http.StatusBadGateway,
			"transport: ledger response has no body stream", nil, meta)
	}
	defer raw.Close()

	limit := a.responseLimit
	if req.MaxResponseBodyBytes > 0 {
		limit = req.MaxResponseBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(raw, limit+1))
	meta["status_code"] = res.StatusCode()
	if err != nil {
		return Response{}, failure(goerrors.CategoryExternal, http.StatusBadGateway,
			"transport: read ledger response", err, meta)
	}
	if int64(len(body)) > limit {
		meta["limit_bytes"] = limit
		return Response{}, failure(goerrors.CategoryExternal, http.StatusBadGateway,
			fmt.Sprintf("transport: ledger response larger than %d bytes", limit), nil, meta)
	}

	headers := make(map[string]string, len(res.Header()))
	for key, values := range res.Header() {
		headers[key] = strings.Join(values, ",")
	}
	return Response{
		StatusCode: res.StatusCode(),
		Headers:    headers,
		Body:       body,
		Metadata: map[string]any{
			"kind":        KindREST,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	}, nil
}

var _ Adapter = (*RESTAdapter)(nil)
