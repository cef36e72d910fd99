package command

import (
	"strings"

	"github.com/goliatone/go-mintflow/core"
)

const (
	TypeAuthenticate    = "mintflow.command.authenticate"
	TypeLogout          = "mintflow.command.logout"
	TypeResetWorkflow   = "mintflow.command.workflow.reset"
	TypeClearHistory    = "mintflow.command.history.clear"
	TypeDeployContract  = "mintflow.command.contract.deploy"
	TypeCreateTokenType = "mintflow.command.token_type.create"
	TypeMint            = "mintflow.command.mint"
	TypeRecheck         = "mintflow.command.operation.recheck"
)

type AuthenticateMessage struct {
	ClientID     string
	ClientSecret string
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if strings.TrimSpace(m.ClientID) == "" {
		return core.NewValidationError("client_id", "client id is required")
	}
	if strings.TrimSpace(m.ClientSecret) == "" {
		return core.NewValidationError("client_secret", "client secret is required")
	}
	return nil
}

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }

func (LogoutMessage) Validate() error { return nil }

type ResetWorkflowMessage struct{}

func (ResetWorkflowMessage) Type() string { return TypeResetWorkflow }

func (ResetWorkflowMessage) Validate() error { return nil }

type ClearHistoryMessage struct{}

func (ClearHistoryMessage) Type() string { return TypeClearHistory }

func (ClearHistoryMessage) Validate() error { return nil }

type DeployContractMessage struct {
	Request core.DeployContractRequest
}

func (DeployContractMessage) Type() string { return TypeDeployContract }

func (m DeployContractMessage) Validate() error {
	return invalidRequest(m.Request.Normalize().Validate(), "command: invalid deploy request")
}

type CreateTokenTypeMessage struct {
	Request core.CreateTokenTypeRequest
}

func (CreateTokenTypeMessage) Type() string { return TypeCreateTokenType }

func (m CreateTokenTypeMessage) Validate() error {
	return invalidRequest(m.Request.Normalize().Validate(), "command: invalid token type request")
}

type MintMessage struct {
	Request core.MintRequest
}

func (MintMessage) Type() string { return TypeMint }

func (m MintMessage) Validate() error {
	return invalidRequest(m.Request.Normalize().Validate(), "command: invalid mint request")
}

type RecheckMessage struct {
	OperationID string
}

func (RecheckMessage) Type() string { return TypeRecheck }

func (m RecheckMessage) Validate() error {
	if strings.TrimSpace(m.OperationID) == "" {
		return core.NewValidationError("operation_id", "operation id is required")
	}
	return nil
}
