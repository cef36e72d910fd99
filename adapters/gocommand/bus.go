package gocommand

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	mintcommand "github.com/goliatone/go-mintflow/command"
	"github.com/goliatone/go-mintflow/core"
	mintquery "github.com/goliatone/go-mintflow/query"
)

// WorkflowService is everything the bus routes to.
type WorkflowService interface {
	mintcommand.MutatingService
	mintquery.TransactionReader
	mintquery.WorkflowReader
	mintquery.ChainReader
}

// Bus owns the dispatcher subscriptions for one workflow service. Close
// releases them.
type Bus struct {
	registry      *command.Registry
	subscriptions []commanddispatcher.Subscription
}

func workflowHandlers(service WorkflowService) []handler {
	return []handler{
		commandHandler(mintcommand.NewAuthenticateCommand(service)),
		commandHandler(mintcommand.NewLogoutCommand(service)),
		commandHandler(mintcommand.NewResetWorkflowCommand(service)),
		commandHandler(mintcommand.NewClearHistoryCommand(service)),
		commandHandler(mintcommand.NewDeployContractCommand(service)),
		commandHandler(mintcommand.NewCreateTokenTypeCommand(service)),
		commandHandler(mintcommand.NewMintCommand(service)),
		commandHandler(mintcommand.NewRecheckCommand(service)),
		queryHandler(mintquery.NewListTransactionsQuery(service)),
		queryHandler(mintquery.NewGetTransactionQuery(service)),
		queryHandler(mintquery.NewWorkflowStatusQuery(service)),
		queryHandler(mintquery.NewListChainsQuery(service)),
	}
}

// NewBus registers every workflow command and query on the process-wide
// dispatcher.
func NewBus(service WorkflowService, runnerOpts ...runner.Option) (*Bus, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: workflow service is required")
	}
	bus := &Bus{registry: command.NewRegistry()}
	for _, register := range workflowHandlers(service) {
		subscription, err := register(bus.registry, runnerOpts)
		if err != nil {
			bus.Close()
			return nil, err
		}
		bus.subscriptions = append(bus.subscriptions, subscription)
	}
	if err := bus.registry.Initialize(); err != nil {
		bus.Close()
		return nil, err
	}
	return bus, nil
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	for _, subscription := range b.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

// Execute validates msg, dispatches it and returns the value the handler
// stored, if any.
func Execute[T command.Message, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if err := ValidateMessageContract(msg); err != nil {
		return zero, err
	}
	collector := command.NewResult[R]()
	err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg)
	out, _ := collector.Load()
	return out, err
}

// Stage dispatches a stage command and returns its outcome.
func Stage[T command.Message](ctx context.Context, msg T) (core.StageOutcome, error) {
	return Execute[T, core.StageOutcome](ctx, msg)
}
