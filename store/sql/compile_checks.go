package sqlstore

import "github.com/goliatone/go-mintflow/core"

var (
	_ core.CredentialStateStore = (*CredentialStore)(nil)
	_ core.OperationStore       = (*OperationStore)(nil)
	_ core.ProgressStore        = (*ProgressStore)(nil)
)
