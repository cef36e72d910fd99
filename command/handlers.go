package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-mintflow/core"
)

type MutatingService interface {
	Authenticate(ctx context.Context, clientID string, clientSecret string) (core.TokenFreshness, error)
	Logout(ctx context.Context) error
	ResetWorkflow(ctx context.Context) (core.ProgressState, error)
	ClearHistory(ctx context.Context) error
	DeployContract(ctx context.Context, req core.DeployContractRequest) (core.StageOutcome, error)
	CreateTokenType(ctx context.Context, req core.CreateTokenTypeRequest) (core.StageOutcome, error)
	Mint(ctx context.Context, req core.MintRequest) (core.StageOutcome, error)
	Recheck(ctx context.Context, id string) (core.StageOutcome, error)
}

type AuthenticateCommand struct {
	service MutatingService
}

func NewAuthenticateCommand(service MutatingService) *AuthenticateCommand {
	return &AuthenticateCommand{service: service}
}

func (c *AuthenticateCommand) Execute(ctx context.Context, msg AuthenticateMessage) error {
	if c == nil || c.service == nil {
		return unwired("authentication")
	}
	out, err := c.service.Authenticate(ctx, msg.ClientID, msg.ClientSecret)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LogoutCommand struct {
	service MutatingService
}

func NewLogoutCommand(service MutatingService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.service == nil {
		return unwired("logout")
	}
	return c.service.Logout(ctx)
}

type ResetWorkflowCommand struct {
	service MutatingService
}

func NewResetWorkflowCommand(service MutatingService) *ResetWorkflowCommand {
	return &ResetWorkflowCommand{service: service}
}

func (c *ResetWorkflowCommand) Execute(ctx context.Context, _ ResetWorkflowMessage) error {
	if c == nil || c.service == nil {
		return unwired("workflow")
	}
	out, err := c.service.ResetWorkflow(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ClearHistoryCommand struct {
	service MutatingService
}

func NewClearHistoryCommand(service MutatingService) *ClearHistoryCommand {
	return &ClearHistoryCommand{service: service}
}

func (c *ClearHistoryCommand) Execute(ctx context.Context, _ ClearHistoryMessage) error {
	if c == nil || c.service == nil {
		return unwired("history")
	}
	return c.service.ClearHistory(ctx)
}

type DeployContractCommand struct {
	service MutatingService
}

func NewDeployContractCommand(service MutatingService) *DeployContractCommand {
	return &DeployContractCommand{service: service}
}

func (c *DeployContractCommand) Execute(ctx context.Context, msg DeployContractMessage) error {
	if c == nil || c.service == nil {
		return unwired("deploy")
	}
	return runStage(ctx, func(ctx context.Context) (core.StageOutcome, error) {
		return c.service.DeployContract(ctx, msg.Request)
	})
}

type CreateTokenTypeCommand struct {
	service MutatingService
}

func NewCreateTokenTypeCommand(service MutatingService) *CreateTokenTypeCommand {
	return &CreateTokenTypeCommand{service: service}
}

func (c *CreateTokenTypeCommand) Execute(ctx context.Context, msg CreateTokenTypeMessage) error {
	if c == nil || c.service == nil {
		return unwired("token type")
	}
	return runStage(ctx, func(ctx context.Context) (core.StageOutcome, error) {
		return c.service.CreateTokenType(ctx, msg.Request)
	})
}

type MintCommand struct {
	service MutatingService
}

func NewMintCommand(service MutatingService) *MintCommand {
	return &MintCommand{service: service}
}

func (c *MintCommand) Execute(ctx context.Context, msg MintMessage) error {
	if c == nil || c.service == nil {
		return unwired("mint")
	}
	return runStage(ctx, func(ctx context.Context) (core.StageOutcome, error) {
		return c.service.Mint(ctx, msg.Request)
	})
}

type RecheckCommand struct {
	service MutatingService
}

func NewRecheckCommand(service MutatingService) *RecheckCommand {
	return &RecheckCommand{service: service}
}

func (c *RecheckCommand) Execute(ctx context.Context, msg RecheckMessage) error {
	if c == nil || c.service == nil {
		return unwired("recheck")
	}
	return runStage(ctx, func(ctx context.Context) (core.StageOutcome, error) {
		return c.service.Recheck(ctx, msg.OperationID)
	})
}

// runStage stores the outcome even when the stage returns an error, so a
// caller still sees the operation id of a timed out or failed submission.
func runStage(ctx context.Context, fn func(context.Context) (core.StageOutcome, error)) error {
	out, err := fn(ctx)
	if out.OperationID != "" || err == nil {
		storeResult(ctx, out)
	}
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
