package core

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service drives the deploy, token type and mint workflow against the remote
// ledger API and owns the local token, ledger and progress state.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	api             LedgerAPI
	tokens          *TokenLifecycle
	ledger          *Ledger
	progress        *ProgressController
	chains          *ChainCatalog
	notifier        Notifier
	now             func() time.Time

	pollsMu sync.Mutex
	polls   map[string]func()
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	LedgerAPI       LedgerAPI
	Tokens          *TokenLifecycle
	Ledger          *Ledger
	Progress        *ProgressController
	Chains          *ChainCatalog
	Notifier        Notifier
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(defaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(defaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	tokens := NewTokenLifecycle(builder.tokenIssuer, builder.credentialStore, finalConfig.refreshMargin(), logger)
	tokens.now = builder.now

	api := builder.ledgerAPI
	if api == nil && builder.ledgerFactory != nil {
		api, err = builder.ledgerFactory(tokens)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	chainLister := builder.chainLister
	if chainLister == nil && api != nil {
		chainLister = api
	}

	ledger := NewLedger(builder.operationStore)
	ledger.Now = builder.now
	progress := NewProgressController(builder.progressStore)
	progress.Now = builder.now

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		api:             api,
		tokens:          tokens,
		ledger:          ledger,
		progress:        progress,
		chains:          NewChainCatalog(chainLister, builder.chainCache, finalConfig.Chains.Supported),
		notifier:        builder.notifier,
		now:             builder.now,
		polls:           map[string]func(){},
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		LedgerAPI:       s.api,
		Tokens:          s.tokens,
		Ledger:          s.ledger,
		Progress:        s.progress,
		Chains:          s.chains,
		Notifier:        s.notifier,
	}
}

// Load restores credentials, ledger and progress from their stores.
func (s *Service) Load(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "load_state", err, nil)
	}()

	if err = s.tokens.Load(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.ledger.Load(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.progress.Load(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// Authenticate stores the client credentials and exchanges them for a token.
// The credentials are kept even when the exchange fails.
func (s *Service) Authenticate(ctx context.Context, clientID string, clientSecret string) (freshness TokenFreshness, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"client_id": strings.TrimSpace(clientID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "authenticate", err, fields)
	}()

	if err = s.tokens.SetIdentity(ctx, clientID, clientSecret); err != nil {
		err = s.mapError(err)
		return TokenFreshness{}, err
	}
	if _, err = s.tokens.AcquireToken(ctx); err != nil {
		err = s.mapError(err)
		s.notify(ctx, Notification{Level: NotificationError, Message: "Authentication failed. Please check your credentials."})
		return TokenFreshness{}, err
	}
	s.notify(ctx, Notification{Level: NotificationSuccess, Message: "Authentication successful!"})
	return s.tokens.Freshness(), nil
}

// Logout stops every poll, wipes the credentials and resets the workflow.
func (s *Service) Logout(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "logout", err, nil)
	}()

	s.cancelPolls()
	if err = s.tokens.Clear(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	if _, err = s.progress.Reset(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// ResetWorkflow stops every poll and returns to the first stage. History is
// kept.
func (s *Service) ResetWorkflow(ctx context.Context) (state ProgressState, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "reset_workflow", err, nil)
	}()

	s.cancelPolls()
	state, err = s.progress.Reset(ctx)
	if err != nil {
		err = s.mapError(err)
		return ProgressState{}, err
	}
	return state, nil
}

func (s *Service) ClearHistory(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "clear_history", err, nil)
	}()

	if err = s.ledger.Clear(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ListTransactions() []OperationRecord {
	return s.ledger.List()
}

func (s *Service) PendingTransactions() []OperationRecord {
	return s.ledger.Pending()
}

func (s *Service) Transaction(id string) (OperationRecord, error) {
	record, err := s.ledger.Get(id)
	if err != nil {
		return OperationRecord{}, s.mapError(err)
	}
	return record, nil
}

func (s *Service) Progress() ProgressState {
	return s.progress.Snapshot()
}

func (s *Service) TokenStatus() TokenFreshness {
	return s.tokens.Freshness()
}

func (s *Service) ListChains(ctx context.Context) ([]string, error) {
	chains, err := s.chains.ListSupportedChains(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return chains, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) notify(ctx context.Context, notification Notification) {
	if s == nil || s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification)
}

func (s *Service) trackPoll(id string, cancel func()) {
	s.pollsMu.Lock()
	defer s.pollsMu.Unlock()
	s.polls[id] = cancel
}

func (s *Service) untrackPoll(id string) {
	s.pollsMu.Lock()
	defer s.pollsMu.Unlock()
	delete(s.polls, id)
}

func (s *Service) activePolls() int {
	s.pollsMu.Lock()
	defer s.pollsMu.Unlock()
	return len(s.polls)
}

func (s *Service) cancelPolls() {
	s.pollsMu.Lock()
	cancels := make([]func(), 0, len(s.polls))
	for id, cancel := range s.polls {
		cancels = append(cancels, cancel)
		delete(s.polls, id)
	}
	s.pollsMu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notification Notification)

func (f NotifierFunc) Notify(ctx context.Context, notification Notification) {
	if f != nil {
		f(ctx, notification)
	}
}
