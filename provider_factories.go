package mintflow

import (
	"net/http"

	"github.com/goliatone/go-mintflow/auth"
	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/providers/devkit"
	"github.com/goliatone/go-mintflow/providers/erc1155"
	"github.com/goliatone/go-mintflow/transport"
)

// ERC1155Ledger builds the ledger client once the service hands over its
// token source. A nil client gets a 30s timeout.
func ERC1155Ledger(cfg erc1155.Config, client *http.Client) LedgerAPIFactory {
	return func(tokens core.TokenSource) (core.LedgerAPI, error) {
		adapter := transport.NewAuthorizedAdapter(transport.NewRESTAdapter(client), tokens)
		return erc1155.New(adapter, cfg)
	}
}

func ClientCredentialsIssuer(api core.APIConfig, logger core.Logger) core.TokenIssuer {
	return auth.NewClientCredentialsIssuer(auth.ClientCredentialsIssuerConfig{
		TokenURL: api.TokenURL(),
		Timeout:  api.RequestTimeout,
		Logger:   logger,
	})
}

// RemoteLedgerOptions wires the token issuer and the ERC1155 client for cfg.
func RemoteLedgerOptions(cfg Config, client *http.Client, logger core.Logger) []Option {
	return []Option{
		WithTokenIssuer(ClientCredentialsIssuer(cfg.API, logger)),
		WithLedgerAPIFactory(ERC1155Ledger(erc1155.Config{
			BaseURL:        cfg.API.BaseURL,
			RequestTimeout: cfg.API.RequestTimeout,
			Chains:         cfg.Chains.Supported,
		}, client)),
	}
}

// SimulatedLedgerOptions replaces the remote API with an in-memory ledger
// whose operations settle after pendingChecks status reads.
func SimulatedLedgerOptions(pendingChecks int) []Option {
	simulator := devkit.NewLedgerSimulator(pendingChecks)
	return []Option{
		WithTokenIssuer(simulator),
		WithLedgerAPI(simulator),
	}
}
