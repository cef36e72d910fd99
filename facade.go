package mintflow

import (
	"fmt"

	mintcommand "github.com/goliatone/go-mintflow/command"
	mintquery "github.com/goliatone/go-mintflow/query"
)

type CommandQueryService interface {
	mintcommand.MutatingService
	mintquery.TransactionReader
	mintquery.WorkflowReader
	mintquery.ChainReader
}

type Commands struct {
	Authenticate    *mintcommand.AuthenticateCommand
	Logout          *mintcommand.LogoutCommand
	ResetWorkflow   *mintcommand.ResetWorkflowCommand
	ClearHistory    *mintcommand.ClearHistoryCommand
	DeployContract  *mintcommand.DeployContractCommand
	CreateTokenType *mintcommand.CreateTokenTypeCommand
	Mint            *mintcommand.MintCommand
	Recheck         *mintcommand.RecheckCommand
}

type Queries struct {
	ListTransactions *mintquery.ListTransactionsQuery
	GetTransaction   *mintquery.GetTransactionQuery
	WorkflowStatus   *mintquery.WorkflowStatusQuery
	ListChains       *mintquery.ListChainsQuery
}

// Facade groups the command and query handlers bound to one service.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("mintflow: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Authenticate:    mintcommand.NewAuthenticateCommand(service),
			Logout:          mintcommand.NewLogoutCommand(service),
			ResetWorkflow:   mintcommand.NewResetWorkflowCommand(service),
			ClearHistory:    mintcommand.NewClearHistoryCommand(service),
			DeployContract:  mintcommand.NewDeployContractCommand(service),
			CreateTokenType: mintcommand.NewCreateTokenTypeCommand(service),
			Mint:            mintcommand.NewMintCommand(service),
			Recheck:         mintcommand.NewRecheckCommand(service),
		},
		queries: Queries{
			ListTransactions: mintquery.NewListTransactionsQuery(service),
			GetTransaction:   mintquery.NewGetTransactionQuery(service),
			WorkflowStatus:   mintquery.NewWorkflowStatusQuery(service),
			ListChains:       mintquery.NewListChainsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
