package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-mintflow/core"
	"github.com/google/uuid"
)

// LedgerSimulator is an in-memory LedgerAPI. Every operation reports PENDING
// for PendingChecks status reads and then settles.
type LedgerSimulator struct {
	PendingChecks int
	Chains        []string
	TokenTTL      time.Duration

	mu         sync.Mutex
	operations map[string]*simulatedOperation
	nextTypeID int64
	failKinds  map[core.OperationKind]bool
}

type simulatedOperation struct {
	kind      core.OperationKind
	checks    int
	contract  core.ContractResult
	tokenType core.TokenTypeResult
	mint      core.MintResult
}

func NewLedgerSimulator(pendingChecks int) *LedgerSimulator {
	if pendingChecks < 0 {
		pendingChecks = 0
	}
	return &LedgerSimulator{
		PendingChecks: pendingChecks,
		Chains:        append([]string(nil), core.DefaultChains...),
		TokenTTL:      time.Hour,
		operations:    map[string]*simulatedOperation{},
		failKinds:     map[core.OperationKind]bool{},
	}
}

// FailKind makes every later operation of kind settle as FAILED.
func (s *LedgerSimulator) FailKind(kind core.OperationKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKinds[kind] = true
}

// IssueToken accepts any complete credential pair.
func (s *LedgerSimulator) IssueToken(_ context.Context, credentials core.Credentials) (core.IssuedToken, error) {
	if !credentials.Complete() {
		return core.IssuedToken{}, core.NewAuthError("devkit: client id and secret are required", nil)
	}
	return core.IssuedToken{
		Token:     "sim-" + uuid.NewString(),
		TokenType: "Bearer",
		TTL:       s.TokenTTL,
	}, nil
}

func (s *LedgerSimulator) ListSupportedChains(context.Context) ([]string, error) {
	return append([]string(nil), s.Chains...), nil
}

func (s *LedgerSimulator) SubmitContractDeployment(_ context.Context, req core.DeployContractRequest) (core.Submission, error) {
	id := uuid.NewString()
	s.store(id, &simulatedOperation{
		kind: core.OperationContractDeployment,
		contract: core.ContractResult{
			ID:          id,
			Address:     "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")[:32],
			Chain:       strings.ToUpper(strings.TrimSpace(req.Chain)),
			Name:        req.Name,
			Description: req.Description,
			Image:       req.Image,
		},
	})
	return core.Submission{OperationID: id, InitialStatus: core.StatusPending}, nil
}

func (s *LedgerSimulator) GetContractDeploymentStatus(_ context.Context, id string) (core.ContractStatus, error) {
	op, status, err := s.check(id, core.OperationContractDeployment)
	if err != nil {
		return core.ContractStatus{}, err
	}
	contract := op.contract
	contract.Status = status
	return core.ContractStatus{Status: status, Contract: contract}, nil
}

func (s *LedgerSimulator) SubmitTokenTypeCreation(_ context.Context, in core.SubmitTokenTypeInput) (core.Submission, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.nextTypeID++
	typeID := s.nextTypeID
	s.mu.Unlock()
	s.store(id, &simulatedOperation{
		kind: core.OperationTokenTypeCreation,
		tokenType: core.TokenTypeResult{
			ID:          id,
			TokenTypeID: typeID,
			Metadata:    core.TokenMetadata{Name: in.Name, Description: in.Description, Image: in.Image},
		},
	})
	return core.Submission{OperationID: id, InitialStatus: core.StatusPending}, nil
}

func (s *LedgerSimulator) GetTokenTypeCreationStatus(_ context.Context, id string) (core.TokenTypeStatus, error) {
	op, status, err := s.check(id, core.OperationTokenTypeCreation)
	if err != nil {
		return core.TokenTypeStatus{}, err
	}
	tokenType := op.tokenType
	tokenType.Status = status
	return core.TokenTypeStatus{Status: status, TokenType: tokenType}, nil
}

func (s *LedgerSimulator) SubmitMint(_ context.Context, in core.SubmitMintInput) (core.Submission, error) {
	id := uuid.NewString()
	s.store(id, &simulatedOperation{
		kind: core.OperationMint,
		mint: core.MintResult{
			ID:           id,
			Destinations: append([]core.Destination(nil), in.Destinations...),
		},
	})
	return core.Submission{OperationID: id, InitialStatus: core.StatusPending}, nil
}

func (s *LedgerSimulator) GetMintStatus(_ context.Context, id string) (core.MintStatus, error) {
	op, status, err := s.check(id, core.OperationMint)
	if err != nil {
		return core.MintStatus{}, err
	}
	mint := op.mint
	mint.Status = status
	if status == core.StatusSucceeded {
		mint.TransactionHash = "0x" + strings.ReplaceAll(id, "-", "")
	}
	return core.MintStatus{Status: status, Mint: mint}, nil
}

func (s *LedgerSimulator) store(id string, op *simulatedOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[id] = op
}

func (s *LedgerSimulator) check(id string, kind core.OperationKind) (simulatedOperation, core.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[strings.TrimSpace(id)]
	if !ok || op.kind != kind {
		return simulatedOperation{}, "", core.NewTransportError(
			fmt.Sprintf("devkit: unknown %s operation %q", kind, id),
			map[string]any{"status_code": 404},
		)
	}
	op.checks++
	status := core.StatusPending
	if op.checks > s.PendingChecks {
		status = core.StatusSucceeded
		if s.failKinds[kind] {
			status = core.StatusFailed
		}
	}
	return *op, status, nil
}

var (
	_ core.LedgerAPI   = (*LedgerSimulator)(nil)
	_ core.TokenIssuer = (*LedgerSimulator)(nil)
)
