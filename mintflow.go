package mintflow

import "github.com/goliatone/go-mintflow/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type (
	Stage            = core.Stage
	StageOutcome     = core.StageOutcome
	ProgressState    = core.ProgressState
	StageData        = core.StageData
	OperationRecord  = core.OperationRecord
	OperationKind    = core.OperationKind
	Status           = core.Status
	TokenFreshness   = core.TokenFreshness
	Destination      = core.Destination
	LedgerAPI        = core.LedgerAPI
	LedgerAPIFactory = core.LedgerAPIFactory
)

type DeployContractRequest = core.DeployContractRequest

type CreateTokenTypeRequest = core.CreateTokenTypeRequest

type MintRequest = core.MintRequest

const (
	StageDeploy    = core.StageDeploy
	StageTokenType = core.StageTokenType
	StageMint      = core.StageMint
)

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithTokenIssuer      = core.WithTokenIssuer
	WithLedgerAPI        = core.WithLedgerAPI
	WithLedgerAPIFactory = core.WithLedgerAPIFactory
	WithChainLister      = core.WithChainLister
	WithChainCache       = core.WithChainCache
	WithCredentialStore  = core.WithCredentialStore
	WithOperationStore   = core.WithOperationStore
	WithProgressStore    = core.WithProgressStore
	WithNotifier         = core.WithNotifier
	WithClock            = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
