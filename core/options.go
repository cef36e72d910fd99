package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	tokenIssuer     TokenIssuer
	ledgerAPI       LedgerAPI
	ledgerFactory   LedgerAPIFactory
	chainLister     ChainLister
	credentialStore CredentialStateStore
	operationStore  OperationStore
	progressStore   ProgressStore
	notifier        Notifier
	chainCache      ChainCache
	now             func() time.Time
}

type Option func(*serviceBuilder)

// LedgerAPIFactory builds the remote client once the service owns the token
// source it must authorize with.
type LedgerAPIFactory func(tokens TokenSource) (LedgerAPI, error)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(b *serviceBuilder) {
		b.tokenIssuer = issuer
	}
}

// WithLedgerAPI sets the remote service. It also serves the chain list unless
// WithChainLister overrides it.
func WithLedgerAPI(api LedgerAPI) Option {
	return func(b *serviceBuilder) {
		b.ledgerAPI = api
	}
}

func WithLedgerAPIFactory(factory LedgerAPIFactory) Option {
	return func(b *serviceBuilder) {
		b.ledgerFactory = factory
	}
}

func WithChainLister(lister ChainLister) Option {
	return func(b *serviceBuilder) {
		b.chainLister = lister
	}
}

func WithChainCache(cache ChainCache) Option {
	return func(b *serviceBuilder) {
		b.chainCache = cache
	}
}

func WithCredentialStore(store CredentialStateStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithOperationStore(store OperationStore) Option {
	return func(b *serviceBuilder) {
		b.operationStore = store
	}
}

func WithProgressStore(store ProgressStore) Option {
	return func(b *serviceBuilder) {
		b.progressStore = store
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve(defaultServiceName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded config and runtime overrides in
// that order of precedence.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = strings.TrimSpace(value)
		}
	}
	setDuration := func(target map[string]any, key string, value time.Duration) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}
	setInt := func(target map[string]any, key string, value int) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}
	section := func(key string, fill func(map[string]any)) {
		values := map[string]any{}
		fill(values)
		if len(values) > 0 {
			layer[key] = values
		}
	}

	setString(layer, "service_name", cfg.ServiceName)
	section("api", func(m map[string]any) {
		setString(m, "base_url", cfg.API.BaseURL)
		setString(m, "auth_url", cfg.API.AuthURL)
		setString(m, "realm", cfg.API.Realm)
		setDuration(m, "request_timeout", cfg.API.RequestTimeout)
	})
	section("token", func(m map[string]any) {
		setDuration(m, "refresh_margin", cfg.Token.RefreshMargin)
	})
	section("polling", func(m map[string]any) {
		setDuration(m, "interval", cfg.Polling.Interval)
		setInt(m, "max_attempts", cfg.Polling.MaxAttempts)
	})
	section("chains", func(m map[string]any) {
		if includeZero || len(cfg.Chains.Supported) > 0 {
			m["supported"] = append([]string(nil), cfg.Chains.Supported...)
		}
		setDuration(m, "cache_ttl", cfg.Chains.CacheTTL)
	})
	section("storage", func(m map[string]any) {
		setString(m, "driver", cfg.Storage.Driver)
		setString(m, "dsn", cfg.Storage.DSN)
		if includeZero || cfg.Storage.Debug {
			m["debug"] = cfg.Storage.Debug
		}
	})
	section("security", func(m map[string]any) {
		setString(m, "app_key", cfg.Security.AppKey)
		setString(m, "key_id", cfg.Security.KeyID)
	})
	section("defaults", func(m map[string]any) {
		setString(m, "contract_name", cfg.Defaults.ContractName)
		setString(m, "contract_description", cfg.Defaults.ContractDescription)
		setString(m, "image", cfg.Defaults.Image)
		setString(m, "external_url", cfg.Defaults.ExternalURL)
		setString(m, "chain", cfg.Defaults.Chain)
		setInt(m, "mint_amount", cfg.Defaults.MintAmount)
	})
	return layer
}
