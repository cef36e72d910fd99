package query

import (
	"context"

	"github.com/goliatone/go-mintflow/core"
)

type TransactionReader interface {
	ListTransactions() []core.OperationRecord
	Transaction(id string) (core.OperationRecord, error)
}

type WorkflowReader interface {
	Progress() core.ProgressState
	TokenStatus() core.TokenFreshness
	PendingTransactions() []core.OperationRecord
}

type ChainReader interface {
	ListChains(ctx context.Context) ([]string, error)
}

// WorkflowStatus is the combined view a status screen renders.
type WorkflowStatus struct {
	Progress  core.ProgressState
	Token     core.TokenFreshness
	Pending   []core.OperationRecord
	CanEnter  map[core.Stage]bool
	NextStage core.Stage
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(ctx context.Context, msg ListTransactionsMessage) ([]core.OperationRecord, error) {
	if q == nil || q.reader == nil {
		return nil, unwired("transaction")
	}
	records := q.reader.ListTransactions()
	out := make([]core.OperationRecord, 0, len(records))
	for _, record := range records {
		if msg.Status != "" && record.Status != msg.Status {
			continue
		}
		if msg.Kind != "" && record.Kind != msg.Kind {
			continue
		}
		out = append(out, record)
		if msg.Limit > 0 && len(out) == msg.Limit {
			break
		}
	}
	return out, nil
}

type GetTransactionQuery struct {
	reader TransactionReader
}

func NewGetTransactionQuery(reader TransactionReader) *GetTransactionQuery {
	return &GetTransactionQuery{reader: reader}
}

func (q *GetTransactionQuery) Query(_ context.Context, msg GetTransactionMessage) (core.OperationRecord, error) {
	if q == nil || q.reader == nil {
		return core.OperationRecord{}, unwired("transaction")
	}
	return q.reader.Transaction(msg.OperationID)
}

type WorkflowStatusQuery struct {
	reader WorkflowReader
}

func NewWorkflowStatusQuery(reader WorkflowReader) *WorkflowStatusQuery {
	return &WorkflowStatusQuery{reader: reader}
}

func (q *WorkflowStatusQuery) Query(_ context.Context, _ WorkflowStatusMessage) (WorkflowStatus, error) {
	if q == nil || q.reader == nil {
		return WorkflowStatus{}, unwired("workflow")
	}
	progress := q.reader.Progress()
	canEnter := map[core.Stage]bool{}
	for _, stage := range []core.Stage{core.StageDeploy, core.StageTokenType, core.StageMint} {
		canEnter[stage] = progress.CanEnter(stage)
	}
	return WorkflowStatus{
		Progress:  progress,
		Token:     q.reader.TokenStatus(),
		Pending:   q.reader.PendingTransactions(),
		CanEnter:  canEnter,
		NextStage: progress.CurrentStage,
	}, nil
}

type ListChainsQuery struct {
	reader ChainReader
}

func NewListChainsQuery(reader ChainReader) *ListChainsQuery {
	return &ListChainsQuery{reader: reader}
}

func (q *ListChainsQuery) Query(ctx context.Context, _ ListChainsMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, unwired("chain")
	}
	return q.reader.ListChains(ctx)
}
