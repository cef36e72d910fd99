package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-mintflow/core"
)

var (
	_ gocmd.Commander[AuthenticateMessage]    = (*AuthenticateCommand)(nil)
	_ gocmd.Commander[LogoutMessage]          = (*LogoutCommand)(nil)
	_ gocmd.Commander[ResetWorkflowMessage]   = (*ResetWorkflowCommand)(nil)
	_ gocmd.Commander[ClearHistoryMessage]    = (*ClearHistoryCommand)(nil)
	_ gocmd.Commander[DeployContractMessage]  = (*DeployContractCommand)(nil)
	_ gocmd.Commander[CreateTokenTypeMessage] = (*CreateTokenTypeCommand)(nil)
	_ gocmd.Commander[MintMessage]            = (*MintCommand)(nil)
	_ gocmd.Commander[RecheckMessage]         = (*RecheckCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
