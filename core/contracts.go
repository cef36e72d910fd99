package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenIssuer exchanges client credentials for a bearer token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, credentials Credentials) (IssuedToken, error)
}

// TokenSource is consulted before every outbound ledger API call.
type TokenSource interface {
	EnsureFreshToken(ctx context.Context) (string, error)
}

type ChainLister interface {
	ListSupportedChains(ctx context.Context) ([]string, error)
}

// LedgerAPI is the remote service that accepts operations and reports their
// status.
type LedgerAPI interface {
	ChainLister
	SubmitContractDeployment(ctx context.Context, req DeployContractRequest) (Submission, error)
	GetContractDeploymentStatus(ctx context.Context, operationID string) (ContractStatus, error)
	SubmitTokenTypeCreation(ctx context.Context, in SubmitTokenTypeInput) (Submission, error)
	GetTokenTypeCreationStatus(ctx context.Context, operationID string) (TokenTypeStatus, error)
	SubmitMint(ctx context.Context, in SubmitMintInput) (Submission, error)
	GetMintStatus(ctx context.Context, operationID string) (MintStatus, error)
}

type CredentialStateStore interface {
	Load(ctx context.Context) (TokenState, error)
	Save(ctx context.Context, state TokenState) error
	Clear(ctx context.Context) error
}

// OperationStore persists ledger records. List returns newest first.
type OperationStore interface {
	List(ctx context.Context) ([]OperationRecord, error)
	Insert(ctx context.Context, record OperationRecord) error
	Update(ctx context.Context, record OperationRecord) error
	Clear(ctx context.Context) error
}

type ProgressStore interface {
	Load(ctx context.Context) (ProgressState, bool, error)
	Save(ctx context.Context, state ProgressState) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Notifier is the user-visible notification channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
