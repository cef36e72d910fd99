package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/providers/devkit"
)

func TestReconcilePending_ChecksOldestFirstAndClassifies(t *testing.T) {
	target := &stubTarget{
		pending: []core.OperationRecord{
			{ID: "mint-1", Kind: core.OperationMint, Status: core.StatusPending},
			{ID: "tt-1", Kind: core.OperationTokenTypeCreation, Status: core.StatusPending},
			{ID: "deploy-1", Kind: core.OperationContractDeployment, Status: core.StatusPending},
		},
		recheckFn: func(_ context.Context, id string) (core.StageOutcome, error) {
			switch id {
			case "deploy-1":
				return core.StageOutcome{OperationID: id, Status: core.StatusSucceeded}, nil
			case "tt-1":
				return core.StageOutcome{OperationID: id, Status: core.StatusFailed}, core.NewOperationFailedError(core.OperationTokenTypeCreation, id)
			default:
				return core.StageOutcome{OperationID: id, Status: core.StatusPending}, core.NewTransportError("status endpoint down", nil)
			}
		},
	}
	r, err := New(target)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := r.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := target.calls; len(got) != 3 || got[0] != "deploy-1" || got[2] != "mint-1" {
		t.Fatalf("expected oldest first, got %v", got)
	}
	if result.Checked != 3 || len(result.Succeeded) != 1 || len(result.Failed) != 1 || len(result.StillPending) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if _, ok := result.Errors["mint-1"]; !ok || len(result.Errors) != 1 {
		t.Fatalf("expected only the transport failure recorded, got %v", result.Errors)
	}
}

func TestReconcilePending_FiltersKinds(t *testing.T) {
	target := &stubTarget{pending: []core.OperationRecord{
		{ID: "mint-1", Kind: core.OperationMint, Status: core.StatusPending},
		{ID: "deploy-1", Kind: core.OperationContractDeployment, Status: core.StatusPending},
	}}
	r, _ := New(target, WithKinds(core.OperationMint))

	result, err := r.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Checked != 1 || len(target.calls) != 1 || target.calls[0] != "mint-1" {
		t.Fatalf("expected only mint checked, got %v", target.calls)
	}
}

func TestReconcilePending_StopsOnCancel(t *testing.T) {
	target := &stubTarget{pending: []core.OperationRecord{
		{ID: "b", Kind: core.OperationMint, Status: core.StatusPending},
		{ID: "a", Kind: core.OperationMint, Status: core.StatusPending},
	}}
	r, _ := New(target, WithSpacing(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	target.recheckFn = func(context.Context, string) (core.StageOutcome, error) {
		cancel()
		return core.StageOutcome{Status: core.StatusPending}, nil
	}

	result, err := r.ReconcilePending(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if result.Checked != 1 {
		t.Fatalf("expected a single check before cancellation, got %d", result.Checked)
	}
}

func TestReconcilePending_AdvancesRestoredWorkflow(t *testing.T) {
	ctx := context.Background()
	simulator := devkit.NewLedgerSimulator(0)
	operations := &memoryOperationStore{}

	submission, err := simulator.SubmitContractDeployment(ctx, core.DeployContractRequest{Name: "Ekwel Cash", Chain: "MATIC"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	operations.records = []core.OperationRecord{{
		ID:          submission.OperationID,
		Kind:        core.OperationContractDeployment,
		Status:      core.StatusPending,
		SubmittedAt: time.Now().UTC(),
	}}

	service, err := core.NewService(core.DefaultConfig(),
		core.WithLedgerAPI(simulator),
		core.WithOperationStore(operations),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := service.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	r, _ := New(service)
	result, err := r.ReconcilePending(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("expected deployment to succeed, got %#v", result)
	}
	progress := service.Progress()
	if progress.CurrentStage != core.StageTokenType || progress.Data.Contract == nil {
		t.Fatalf("expected workflow advanced to token type, got %#v", progress)
	}
	if len(service.PendingTransactions()) != 0 {
		t.Fatalf("expected no pending records left")
	}
}

type stubTarget struct {
	pending   []core.OperationRecord
	recheckFn func(context.Context, string) (core.StageOutcome, error)
	calls     []string
}

func (s *stubTarget) PendingTransactions() []core.OperationRecord {
	return append([]core.OperationRecord(nil), s.pending...)
}

func (s *stubTarget) Recheck(ctx context.Context, id string) (core.StageOutcome, error) {
	s.calls = append(s.calls, id)
	if s.recheckFn == nil {
		return core.StageOutcome{OperationID: id, Status: core.StatusPending}, nil
	}
	return s.recheckFn(ctx, id)
}

type memoryOperationStore struct {
	records []core.OperationRecord
}

func (m *memoryOperationStore) List(context.Context) ([]core.OperationRecord, error) {
	return append([]core.OperationRecord(nil), m.records...), nil
}

func (m *memoryOperationStore) Insert(_ context.Context, record core.OperationRecord) error {
	m.records = append([]core.OperationRecord{record}, m.records...)
	return nil
}

func (m *memoryOperationStore) Update(_ context.Context, record core.OperationRecord) error {
	for i := range m.records {
		if m.records[i].ID == record.ID {
			m.records[i] = record
			return nil
		}
	}
	return core.NewNotFoundError(record.ID)
}

func (m *memoryOperationStore) Clear(context.Context) error {
	m.records = nil
	return nil
}
