package erc1155

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/transport"
)

// envelope is the {success, result} wrapper every endpoint responds with.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []apiError      `json:"errors"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"errorMessage"`
}

func (c *Client) call(ctx context.Context, method string, path string, body any, out any) (map[string]any, error) {
	req := transport.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Timeout: c.timeout,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("providers/erc1155: encode request: %w", err)
		}
		req.Body = encoded
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := c.adapter.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := statusError(method, path, res); err != nil {
		return nil, err
	}

	decoded := envelope{}
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return nil, core.WrapTransportError(err, "providers/erc1155: decode response envelope")
	}
	if !decoded.Success {
		return nil, core.NewTransportError(
			"providers/erc1155: request was not successful: "+describeErrors(decoded.Errors),
			map[string]any{"method": method, "path": path},
		)
	}
	if len(decoded.Result) == 0 {
		return nil, core.NewTransportError("providers/erc1155: response has no result", map[string]any{"path": path})
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return nil, core.WrapTransportError(err, "providers/erc1155: decode result")
	}
	raw := map[string]any{}
	if err := json.Unmarshal(decoded.Result, &raw); err != nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func statusError(method string, path string, res transport.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	metadata := map[string]any{"method": method, "path": path, "status_code": res.StatusCode}
	detail := ""
	decoded := envelope{}
	if json.Unmarshal(res.Body, &decoded) == nil {
		detail = describeErrors(decoded.Errors)
	}
	message := fmt.Sprintf("providers/erc1155: %s %s returned %d", method, path, res.StatusCode)
	if detail != "" {
		message += ": " + detail
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return core.NewAuthError(message, metadata)
	}
	return core.NewTransportError(message, metadata)
}

func describeErrors(items []apiError) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Message)
		if text == "" {
			text = strings.TrimSpace(item.Code)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, "; ")
}
