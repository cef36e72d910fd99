package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-mintflow/core"
)

var (
	_ gocmd.Querier[ListTransactionsMessage, []core.OperationRecord] = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[GetTransactionMessage, core.OperationRecord]     = (*GetTransactionQuery)(nil)
	_ gocmd.Querier[WorkflowStatusMessage, WorkflowStatus]           = (*WorkflowStatusQuery)(nil)
	_ gocmd.Querier[ListChainsMessage, []string]                     = (*ListChainsQuery)(nil)

	_ TransactionReader = (*core.Service)(nil)
	_ WorkflowReader    = (*core.Service)(nil)
	_ ChainReader       = (*core.Service)(nil)
)
