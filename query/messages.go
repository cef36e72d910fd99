package query

import (
	"strings"

	"github.com/goliatone/go-mintflow/core"
)

const (
	TypeListTransactions = "mintflow.query.transactions.list"
	TypeGetTransaction   = "mintflow.query.transaction.get"
	TypeWorkflowStatus   = "mintflow.query.workflow.status"
	TypeListChains       = "mintflow.query.chains.list"
)

// ListTransactionsMessage filters the ledger. Empty fields match every
// record and a zero Limit returns all of them.
type ListTransactionsMessage struct {
	Status core.Status
	Kind   core.OperationKind
	Limit  int
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if m.Status != "" && !m.Status.Valid() {
		return core.NewValidationError("status", "status must be PENDING, SUCCEEDED or FAILED")
	}
	if m.Kind != "" && !m.Kind.Valid() {
		return core.NewValidationError("kind", "unknown operation kind")
	}
	if m.Limit < 0 {
		return core.NewValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type GetTransactionMessage struct {
	OperationID string
}

func (GetTransactionMessage) Type() string { return TypeGetTransaction }

func (m GetTransactionMessage) Validate() error {
	if strings.TrimSpace(m.OperationID) == "" {
		return core.NewValidationError("operation_id", "operation id is required")
	}
	return nil
}

type WorkflowStatusMessage struct{}

func (WorkflowStatusMessage) Type() string { return TypeWorkflowStatus }

func (WorkflowStatusMessage) Validate() error { return nil }

type ListChainsMessage struct{}

func (ListChainsMessage) Type() string { return TypeListChains }

func (ListChainsMessage) Validate() error { return nil }
