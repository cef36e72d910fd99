package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	mintflow "github.com/goliatone/go-mintflow"
	"github.com/goliatone/go-mintflow/adapters/gocommand"
	"github.com/goliatone/go-mintflow/adapters/gojob"
	"github.com/goliatone/go-mintflow/adapters/gologger"
	mintprometheus "github.com/goliatone/go-mintflow/adapters/prometheus"
	"github.com/goliatone/go-mintflow/core"
	mintflowmigrations "github.com/goliatone/go-mintflow/migrations"
	"github.com/goliatone/go-mintflow/security"
	sqlstore "github.com/goliatone/go-mintflow/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// AppOptions are the per-invocation switches that are not part of the
// config file.
type AppOptions struct {
	Profile       string
	Simulate      bool
	PendingChecks int
	LogLevel      string
	LogOutput     io.Writer
}

// App is one fully wired workflow service with its persistence and bus.
type App struct {
	Settings   Settings
	Service    *core.Service
	Bus        *gocommand.Bus
	Reconcile  *gojob.ReconcileJob
	Metrics    *prometheus.Registry
	ChainCache core.ChainCache
	Logger     *gologger.SlogLogger

	client *persistence.Client
}

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-mintflow" }

// OpenStorage connects to the configured database and applies migrations.
func OpenStorage(ctx context.Context, storage core.StorageConfig) (*persistence.Client, error) {
	driver, dialectName, dialect, err := resolveDialect(storage.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("cli: open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, dsn: storage.DSN, debug: storage.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("cli: persistence client: %w", err)
	}
	if _, err := mintflowmigrations.Apply(ctx, client, dialectName); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func resolveDialect(driver string) (string, string, schema.Dialect, error) {
	dialectName, err := mintflowmigrations.DialectForDriver(driver)
	if err != nil {
		return "", "", nil, fmt.Errorf("cli: unsupported storage driver %q", driver)
	}
	if dialectName == mintflowmigrations.DialectPostgres {
		return driverPostgres, dialectName, pgdialect.New(), nil
	}
	return driverSQLite, dialectName, sqlitedialect.New(), nil
}

// OpenApp wires storage, secrets, the ledger client, metrics and the command
// bus around one service and restores its persisted state.
func OpenApp(ctx context.Context, settings Settings, opts AppOptions) (*App, error) {
	logger := gologger.NewSlogLogger(opts.LogOutput, opts.LogLevel, settings.Config.ServiceName)
	client, err := OpenStorage(ctx, settings.Config.Storage)
	if err != nil {
		return nil, err
	}

	factoryOpts := []sqlstore.FactoryOption{sqlstore.WithProfile(opts.Profile)}
	if key := strings.TrimSpace(settings.Config.Security.AppKey); key != "" {
		secrets, err := security.NewAppKeySecretProviderFromString(key, security.WithKeyID(settings.Config.Security.KeyID))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		factoryOpts = append(factoryOpts, sqlstore.WithSecretProvider(secrets))
	} else {
		logger.Warn("no app key configured, credentials will not be persisted", "env", EnvAppKey)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	chainCache, err := newChainCache(settings.Config.Chains.CacheTTL)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	registry := prometheus.NewRegistry()
	serviceOpts := append(factory.Options(),
		core.WithLoggerProvider(gologger.NewProvider(logger)),
		core.WithMetricsRecorder(mintprometheus.NewRecorder(registry)),
	)
	if chainCache != nil {
		serviceOpts = append(serviceOpts, core.WithChainCache(chainCache))
	}
	if opts.Simulate {
		serviceOpts = append(serviceOpts, mintflow.SimulatedLedgerOptions(opts.PendingChecks)...)
	} else {
		serviceOpts = append(serviceOpts, mintflow.RemoteLedgerOptions(settings.Config, nil, logger)...)
	}

	service, err := mintflow.Setup(settings.Config, serviceOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := service.Load(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	bus, err := gocommand.NewBus(service)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	reconcileJob, err := gojob.NewReconcileJob(service, gojob.WithLogger(logger))
	if err != nil {
		bus.Close()
		_ = client.Close()
		return nil, err
	}
	return &App{
		Settings:   settings,
		Service:    service,
		Bus:        bus,
		Reconcile:  reconcileJob,
		Metrics:    registry,
		ChainCache: chainCache,
		Logger:     logger,
		client:     client,
	}, nil
}

// newChainCache returns nil when ttl disables caching.
func newChainCache(ttl time.Duration) (core.ChainCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	config := repositorycache.DefaultConfig()
	config.TTL = ttl
	cache, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("cli: chain cache: %w", err)
	}
	return cache, nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Bus.Close()
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
