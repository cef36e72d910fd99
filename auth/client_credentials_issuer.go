package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goliatone/go-mintflow/core"
)

const (
	defaultTokenTimeout       = 15 * time.Second
	defaultTokenRetryCount    = 2
	defaultTokenRetryInterval = 500 * time.Millisecond
	defaultTokenTTL           = 5 * time.Minute
)

type ClientCredentialsIssuerConfig struct {
	TokenURL   string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Logger     core.Logger
}

// ClientCredentialsIssuer exchanges a client id and secret for a bearer token
// at an OpenID Connect token endpoint.
type ClientCredentialsIssuer struct {
	client   *resty.Client
	tokenURL string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func NewClientCredentialsIssuer(cfg ClientCredentialsIssuerConfig) *ClientCredentialsIssuer {
	return NewClientCredentialsIssuerWithClient(resty.New(), cfg)
}

// NewClientCredentialsIssuerWithClient configures the given resty client for
// token requests. Retries only cover transport failures, 5xx and 429.
func NewClientCredentialsIssuerWithClient(client *resty.Client, cfg ClientCredentialsIssuerConfig) *ClientCredentialsIssuer {
	if client == nil {
		client = resty.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultTokenRetryCount
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultTokenRetryInterval
	}

	client.
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(time.Duration(retries+1)*wait).
		AddRetryCondition(retryOnErrOr5xx).
		SetHeader("Accept", "application/json")
	if cfg.Logger != nil {
		client.SetLogger(NewRestyLogger(cfg.Logger))
	}

	return &ClientCredentialsIssuer{
		client:   client,
		tokenURL: strings.TrimSpace(cfg.TokenURL),
	}
}

func (i *ClientCredentialsIssuer) IssueToken(ctx context.Context, credentials core.Credentials) (core.IssuedToken, error) {
	if i == nil || i.client == nil {
		return core.IssuedToken{}, core.NewAuthError("auth: token issuer is not configured", nil)
	}
	if i.tokenURL == "" {
		return core.IssuedToken{}, core.NewAuthError("auth: token url is required", nil)
	}
	if !credentials.Complete() {
		return core.IssuedToken{}, core.NewAuthError("auth: client_id and client_secret are required", nil)
	}

	result := &tokenResponse{}
	failure := &tokenErrorResponse{}
	res, err := i.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     strings.TrimSpace(credentials.ClientID),
			"client_secret": strings.TrimSpace(credentials.ClientSecret),
		}).
		SetResult(result).
		SetError(failure).
		Post(i.tokenURL)
	if err != nil {
		return core.IssuedToken{}, core.WrapTransportError(err, "auth: token request failed")
	}

	switch status := res.StatusCode(); {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return core.IssuedToken{}, core.NewAuthError(
			fmt.Sprintf("auth: credentials rejected: %s", describeTokenFailure(failure, status)),
			map[string]any{"status_code": status},
		)
	case res.IsError():
		return core.IssuedToken{}, core.NewTransportError(
			fmt.Sprintf("auth: token endpoint returned %d", status),
			map[string]any{"status_code": status},
		)
	}

	token := strings.TrimSpace(result.AccessToken)
	if token == "" {
		return core.IssuedToken{}, core.NewTransportError("auth: token response has no access_token", nil)
	}
	ttl := time.Duration(result.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return core.IssuedToken{
		Token:     token,
		TokenType: strings.TrimSpace(result.TokenType),
		Scope:     strings.TrimSpace(result.Scope),
		TTL:       ttl,
	}, nil
}

func describeTokenFailure(failure *tokenErrorResponse, status int) string {
	if failure != nil {
		if desc := strings.TrimSpace(failure.ErrorDescription); desc != "" {
			return desc
		}
		if code := strings.TrimSpace(failure.Error); code != "" {
			return code
		}
	}
	return http.StatusText(status)
}

func retryOnErrOr5xx(res *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if res == nil {
		return false
	}
	return res.StatusCode() >= http.StatusInternalServerError || res.StatusCode() == http.StatusTooManyRequests
}

var _ core.TokenIssuer = (*ClientCredentialsIssuer)(nil)
