package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// ValidateMessageContract rejects messages without a routable type and runs
// the message's own Validate when present.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T has no message type", msg)
	}
	if strings.TrimSpace(typed.Type()) == "" {
		return fmt.Errorf("gocommand: %T returned an empty message type", msg)
	}
	return nil
}

// handler subscribes one workflow handler on the dispatcher and records it
// in the registry so Initialize can resolve its metadata.
type handler func(registry *command.Registry, opts []runner.Option) (commanddispatcher.Subscription, error)

func commandHandler[T any](cmd command.Commander[T]) handler {
	return func(registry *command.Registry, opts []runner.Option) (commanddispatcher.Subscription, error) {
		if cmd == nil {
			return nil, fmt.Errorf("gocommand: nil command handler")
		}
		return track(registry, cmd, commanddispatcher.SubscribeCommand(cmd, opts...))
	}
}

func queryHandler[T any, R any](qry command.Querier[T, R]) handler {
	return func(registry *command.Registry, opts []runner.Option) (commanddispatcher.Subscription, error) {
		if qry == nil {
			return nil, fmt.Errorf("gocommand: nil query handler")
		}
		return track(registry, qry, commanddispatcher.SubscribeQuery(qry, opts...))
	}
}

func track(registry *command.Registry, handler any, subscription commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if registry == nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if err := registry.RegisterCommand(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Query validates msg and asks the subscribed query handler for a result.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if err := ValidateMessageContract(msg); err != nil {
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
