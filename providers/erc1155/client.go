package erc1155

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/transport"
)

const (
	ProviderID = "erc1155"
	APIPrefix  = "/api/v3"

	pathContractDeployments = "/erc1155/contracts/deployments"
	pathTokenTypeCreations  = "/erc1155/token-types/creations"
	pathTokenMints          = "/erc1155/tokens/mints"
)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// Chains is served as the supported chain list. The remote API has no
	// listing endpoint.
	Chains []string
}

func DefaultConfig() Config {
	cfg := core.DefaultConfig()
	return Config{
		BaseURL:        cfg.API.BaseURL,
		RequestTimeout: cfg.API.RequestTimeout,
		Chains:         append([]string(nil), core.DefaultChains...),
	}
}

// Client speaks the ERC1155 ledger API. Authorization is the adapter's job.
type Client struct {
	adapter transport.Adapter
	baseURL string
	timeout time.Duration
	chains  []string
}

func New(adapter transport.Adapter, cfg Config) (*Client, error) {
	if adapter == nil {
		return nil, fmt.Errorf("providers/erc1155: transport adapter is required")
	}
	defaults := DefaultConfig()
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaults.BaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("providers/erc1155: invalid base url: %w", err)
	}
	base = strings.TrimSuffix(base, APIPrefix)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = defaults.Chains
	}
	return &Client{
		adapter: adapter,
		baseURL: base + APIPrefix,
		timeout: cfg.RequestTimeout,
		chains:  append([]string(nil), cfg.Chains...),
	}, nil
}

func (c *Client) ListSupportedChains(context.Context) ([]string, error) {
	return append([]string(nil), c.chains...), nil
}

type deploymentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	ExternalURL string `json:"externalUrl"`
	Chain       string `json:"chain"`
}

type contractResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (c *Client) SubmitContractDeployment(ctx context.Context, req core.DeployContractRequest) (core.Submission, error) {
	body := deploymentRequest{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		ExternalURL: req.ExternalURL,
		Chain:       req.Chain,
	}
	result := contractResult{}
	raw, err := c.call(ctx, http.MethodPost, pathContractDeployments, body, &result)
	if err != nil {
		return core.Submission{}, err
	}
	return submission(result.ID, result.Status, raw), nil
}

func (c *Client) GetContractDeploymentStatus(ctx context.Context, operationID string) (core.ContractStatus, error) {
	result := contractResult{}
	raw, err := c.call(ctx, http.MethodGet, pathContractDeployments+"/"+url.PathEscape(operationID), nil, &result)
	if err != nil {
		return core.ContractStatus{}, err
	}
	status, _ := core.ParseRemoteStatus(result.Status)
	return core.ContractStatus{
		Status: status,
		Contract: core.ContractResult{
			ID:          firstNonEmpty(result.ID, operationID),
			Address:     strings.TrimSpace(result.Address),
			Chain:       strings.ToUpper(strings.TrimSpace(result.Chain)),
			Name:        result.Name,
			Description: result.Description,
			Image:       result.Image,
			Status:      status,
		},
		Raw: raw,
	}, nil
}

type tokenTypeCreationRequest struct {
	Chain           string               `json:"chain"`
	ContractAddress string               `json:"contractAddress"`
	Creations       []core.TokenMetadata `json:"creations"`
}

type tokenTypeSubmitResult struct {
	Status    string `json:"status"`
	Creations []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"creations"`
}

type tokenTypeResult struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	TokenTypeID json.Number        `json:"tokenTypeId"`
	Metadata    core.TokenMetadata `json:"metadata"`
}

func (c *Client) SubmitTokenTypeCreation(ctx context.Context, in core.SubmitTokenTypeInput) (core.Submission, error) {
	body := tokenTypeCreationRequest{
		Chain:           in.Chain,
		ContractAddress: in.ContractAddress,
		Creations: []core.TokenMetadata{{
			Name:        in.Name,
			Description: in.Description,
			Image:       in.Image,
		}},
	}
	result := tokenTypeSubmitResult{}
	raw, err := c.call(ctx, http.MethodPost, pathTokenTypeCreations, body, &result)
	if err != nil {
		return core.Submission{}, err
	}
	if len(result.Creations) == 0 {
		return core.Submission{}, core.NewTransportError("providers/erc1155: token type creation returned no creations", nil)
	}
	first := result.Creations[0]
	return submission(first.ID, firstNonEmpty(first.Status, result.Status), raw), nil
}

func (c *Client) GetTokenTypeCreationStatus(ctx context.Context, operationID string) (core.TokenTypeStatus, error) {
	result := tokenTypeResult{}
	raw, err := c.call(ctx, http.MethodGet, pathTokenTypeCreations+"/"+url.PathEscape(operationID), nil, &result)
	if err != nil {
		return core.TokenTypeStatus{}, err
	}
	status, _ := core.ParseRemoteStatus(result.Status)
	tokenTypeID := int64(0)
	if result.TokenTypeID != "" {
		parsed, err := result.TokenTypeID.Int64()
		if err != nil {
			return core.TokenTypeStatus{}, core.WrapTransportError(err, "providers/erc1155: invalid tokenTypeId")
		}
		tokenTypeID = parsed
	}
	return core.TokenTypeStatus{
		Status: status,
		TokenType: core.TokenTypeResult{
			ID:          firstNonEmpty(result.ID, operationID),
			TokenTypeID: tokenTypeID,
			Status:      status,
			Metadata:    result.Metadata,
		},
		Raw: raw,
	}, nil
}

type mintRequest struct {
	ContractAddress string             `json:"contractAddress"`
	Chain           string             `json:"chain"`
	TokenTypeID     int64              `json:"tokenTypeId"`
	Destinations    []core.Destination `json:"destinations"`
}

type mintResult struct {
	ID              string             `json:"id"`
	Status          string             `json:"status"`
	TransactionHash string             `json:"transactionHash"`
	Destinations    []core.Destination `json:"destinations"`
}

func (c *Client) SubmitMint(ctx context.Context, in core.SubmitMintInput) (core.Submission, error) {
	body := mintRequest{
		ContractAddress: in.ContractAddress,
		Chain:           in.Chain,
		TokenTypeID:     in.TokenTypeID,
		Destinations:    append([]core.Destination(nil), in.Destinations...),
	}
	result := mintResult{}
	raw, err := c.call(ctx, http.MethodPost, pathTokenMints, body, &result)
	if err != nil {
		return core.Submission{}, err
	}
	return submission(result.ID, result.Status, raw), nil
}

func (c *Client) GetMintStatus(ctx context.Context, operationID string) (core.MintStatus, error) {
	result := mintResult{}
	raw, err := c.call(ctx, http.MethodGet, pathTokenMints+"/"+url.PathEscape(operationID), nil, &result)
	if err != nil {
		return core.MintStatus{}, err
	}
	status, _ := core.ParseRemoteStatus(result.Status)
	return core.MintStatus{
		Status: status,
		Mint: core.MintResult{
			ID:              firstNonEmpty(result.ID, operationID),
			Status:          status,
			TransactionHash: result.TransactionHash,
			Destinations:    result.Destinations,
		},
		Raw: raw,
	}, nil
}

func submission(id string, rawStatus string, raw map[string]any) core.Submission {
	status, ok := core.ParseRemoteStatus(rawStatus)
	if !ok {
		status = core.StatusPending
	}
	return core.Submission{
		OperationID:   strings.TrimSpace(id),
		InitialStatus: status,
		Raw:           raw,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ core.LedgerAPI = (*Client)(nil)
