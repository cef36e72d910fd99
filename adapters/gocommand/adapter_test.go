package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	mintcommand "github.com/goliatone/go-mintflow/command"
	"github.com/goliatone/go-mintflow/core"
	mintquery "github.com/goliatone/go-mintflow/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "mintflow.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "mintflow.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "mintflow.test.dispatch" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestCommandHandlerRegistersAndDispatches(t *testing.T) {
	registry := command.NewRegistry()
	executed := 0
	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	subscription, err := commandHandler[dispatchMessage](cmd)(registry, nil)
	if err != nil {
		t.Fatalf("register handler: %v", err)
	}
	defer subscription.Unsubscribe()
	if err := registry.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, err := Execute[dispatchMessage, struct{}](context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestHandlerRequiresRegistry(t *testing.T) {
	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error { return nil })
	if _, err := commandHandler[dispatchMessage](cmd)(nil, nil); err == nil {
		t.Fatalf("expected error without registry")
	}
	if _, err := Query[invalidMessage, string](context.Background(), invalidMessage{}); err == nil {
		t.Fatalf("expected query with empty type to be rejected")
	}
}

func TestBusRoutesWorkflowMessages(t *testing.T) {
	svc := &stubWorkflowService{
		progress: core.InitialProgressState(),
		chains:   []string{"MATIC"},
	}
	bus, err := NewBus(svc)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer bus.Close()
	ctx := context.Background()

	outcome, err := Stage(ctx, mintcommand.DeployContractMessage{Request: core.DeployContractRequest{Name: "C", Chain: "MATIC"}})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if outcome.OperationID != "deploy-1" || svc.deploys != 1 {
		t.Fatalf("expected deploy routed to service, got %#v", outcome)
	}

	if _, err := Stage(ctx, mintcommand.DeployContractMessage{}); err == nil {
		t.Fatalf("expected invalid deploy message to be rejected before dispatch")
	}
	if svc.deploys != 1 {
		t.Fatalf("expected rejected message not to reach the service")
	}

	chains, err := Query[mintquery.ListChainsMessage, []string](ctx, mintquery.ListChainsMessage{})
	if err != nil {
		t.Fatalf("list chains: %v", err)
	}
	if len(chains) != 1 || chains[0] != "MATIC" {
		t.Fatalf("unexpected chains: %v", chains)
	}

	status, err := Query[mintquery.WorkflowStatusMessage, mintquery.WorkflowStatus](ctx, mintquery.WorkflowStatusMessage{})
	if err != nil {
		t.Fatalf("workflow status: %v", err)
	}
	if status.NextStage != core.StageDeploy {
		t.Fatalf("expected deploy stage next, got %v", status.NextStage)
	}
}

type stubWorkflowService struct {
	progress core.ProgressState
	chains   []string
	deploys  int
}

func (s *stubWorkflowService) Authenticate(context.Context, string, string) (core.TokenFreshness, error) {
	return core.TokenFreshness{HasToken: true}, nil
}

func (s *stubWorkflowService) Logout(context.Context) error { return nil }

func (s *stubWorkflowService) ResetWorkflow(context.Context) (core.ProgressState, error) {
	return core.InitialProgressState(), nil
}

func (s *stubWorkflowService) ClearHistory(context.Context) error { return nil }

func (s *stubWorkflowService) DeployContract(context.Context, core.DeployContractRequest) (core.StageOutcome, error) {
	s.deploys++
	return core.StageOutcome{Stage: core.StageDeploy, OperationID: "deploy-1", Status: core.StatusSucceeded}, nil
}

func (s *stubWorkflowService) CreateTokenType(context.Context, core.CreateTokenTypeRequest) (core.StageOutcome, error) {
	return core.StageOutcome{}, nil
}

func (s *stubWorkflowService) Mint(context.Context, core.MintRequest) (core.StageOutcome, error) {
	return core.StageOutcome{}, nil
}

func (s *stubWorkflowService) Recheck(context.Context, string) (core.StageOutcome, error) {
	return core.StageOutcome{}, nil
}

func (s *stubWorkflowService) ListTransactions() []core.OperationRecord { return nil }

func (s *stubWorkflowService) Transaction(id string) (core.OperationRecord, error) {
	return core.OperationRecord{}, core.NewNotFoundError(id)
}

func (s *stubWorkflowService) Progress() core.ProgressState { return s.progress }

func (s *stubWorkflowService) TokenStatus() core.TokenFreshness { return core.TokenFreshness{} }

func (s *stubWorkflowService) PendingTransactions() []core.OperationRecord { return nil }

func (s *stubWorkflowService) ListChains(context.Context) ([]string, error) {
	return append([]string(nil), s.chains...), nil
}
