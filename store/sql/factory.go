package sqlstore

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-mintflow/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithSecretProvider enables the credential store. Without one the factory
// only builds the operation and progress stores.
func WithSecretProvider(secrets core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = secrets
	}
}

func WithTokenStateCodec(codec core.TokenStateCodec) FactoryOption {
	return func(f *RepositoryFactory) {
		if codec != nil {
			f.codec = codec
		}
	}
}

func WithProfile(profile string) FactoryOption {
	return func(f *RepositoryFactory) {
		f.profile = normalizeProfile(profile)
	}
}

type RepositoryFactory struct {
	db      *bun.DB
	secrets core.SecretProvider
	codec   core.TokenStateCodec
	profile string

	credentialStore *CredentialStore
	operationStore  *OperationStore
	progressStore   *ProgressStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{
		codec:   core.JSONTokenStateCodec{},
		profile: DefaultProfile,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.operationStore != nil && f.progressStore != nil {
		return nil
	}
	return f.initStores()
}

// CredentialStore returns nil when no secret provider was configured.
func (f *RepositoryFactory) CredentialStore() core.CredentialStateStore {
	if f == nil || f.credentialStore == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) OperationStore() core.OperationStore {
	if f == nil || f.operationStore == nil {
		return nil
	}
	return f.operationStore
}

func (f *RepositoryFactory) ProgressStore() core.ProgressStore {
	if f == nil || f.progressStore == nil {
		return nil
	}
	return f.progressStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// Options wires every built store into a core service.
func (f *RepositoryFactory) Options() []core.Option {
	if f == nil {
		return nil
	}
	opts := []core.Option{
		core.WithOperationStore(f.OperationStore()),
		core.WithProgressStore(f.ProgressStore()),
	}
	if store := f.CredentialStore(); store != nil {
		opts = append(opts, core.WithCredentialStore(store))
	}
	return opts
}

func (f *RepositoryFactory) initStores() error {
	if f.secrets != nil {
		credentialRepo := repository.NewRepository[*credentialRecord](f.db, credentialHandlers())
		if validator, ok := credentialRepo.(repository.Validator); ok {
			if err := validator.Validate(); err != nil {
				return fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
			}
		}
		f.credentialStore = &CredentialStore{
			db:      f.db,
			repo:    credentialRepo,
			secrets: f.secrets,
			codec:   f.codec,
			profile: f.profile,
		}
	}

	operationStore, err := NewOperationStore(f.db, f.profile)
	if err != nil {
		return err
	}
	f.operationStore = operationStore
	progressStore, err := NewProgressStore(f.db, f.profile)
	if err != nil {
		return err
	}
	f.progressStore = progressStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

func normalizeProfile(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return DefaultProfile
	}
	return profile
}
