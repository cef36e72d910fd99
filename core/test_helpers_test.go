package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	return l.values, nil
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubTokenIssuer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, credentials Credentials) (IssuedToken, error)
}

func (s *stubTokenIssuer) IssueToken(ctx context.Context, credentials Credentials) (IssuedToken, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, credentials)
	}
	return IssuedToken{Token: fmt.Sprintf("token-%d", call), TokenType: "Bearer", TTL: 5 * time.Minute}, nil
}

func (s *stubTokenIssuer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memoryCredentialStore struct {
	mu      sync.Mutex
	state   TokenState
	saves   int
	saveErr error
}

func (m *memoryCredentialStore) Load(context.Context) (TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneTokenState(m.state), nil
}

func (m *memoryCredentialStore) Save(_ context.Context, state TokenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = cloneTokenState(state)
	return nil
}

func (m *memoryCredentialStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = TokenState{}
	return nil
}

type memoryOperationStore struct {
	mu        sync.Mutex
	records   []OperationRecord
	insertErr error
	updateErr error
}

func (m *memoryOperationStore) List(context.Context) ([]OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OperationRecord, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, cloneOperationRecord(record))
	}
	return out, nil
}

func (m *memoryOperationStore) Insert(_ context.Context, record OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append([]OperationRecord{cloneOperationRecord(record)}, m.records...)
	return nil
}

func (m *memoryOperationStore) Update(_ context.Context, record OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for index := range m.records {
		if m.records[index].ID == record.ID {
			m.records[index] = cloneOperationRecord(record)
			return nil
		}
	}
	return NewNotFoundError(record.ID)
}

func (m *memoryOperationStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

type memoryProgressStore struct {
	mu      sync.Mutex
	state   ProgressState
	ok      bool
	saves   int
	saveErr error
}

func (m *memoryProgressStore) Load(context.Context) (ProgressState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneProgressState(m.state), m.ok, nil
}

func (m *memoryProgressStore) Save(_ context.Context, state ProgressState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = cloneProgressState(state)
	m.ok = true
	return nil
}

// stubLedgerAPI answers status checks from per-kind scripts. Each script entry
// is consumed once; the last entry repeats.
type stubLedgerAPI struct {
	mu sync.Mutex

	submitDeployFn    func(ctx context.Context, req DeployContractRequest) (Submission, error)
	submitTokenTypeFn func(ctx context.Context, in SubmitTokenTypeInput) (Submission, error)
	submitMintFn      func(ctx context.Context, in SubmitMintInput) (Submission, error)

	contractStatuses  []ContractStatus
	tokenTypeStatuses []TokenTypeStatus
	mintStatuses      []MintStatus
	statusErr         error

	submits      int
	statusChecks int
}

func (s *stubLedgerAPI) ListSupportedChains(context.Context) ([]string, error) {
	return append([]string(nil), DefaultChains...), nil
}

func (s *stubLedgerAPI) SubmitContractDeployment(ctx context.Context, req DeployContractRequest) (Submission, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	if s.submitDeployFn != nil {
		return s.submitDeployFn(ctx, req)
	}
	return Submission{OperationID: "deploy-1", InitialStatus: StatusPending}, nil
}

func (s *stubLedgerAPI) GetContractDeploymentStatus(context.Context, string) (ContractStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusChecks++
	if s.statusErr != nil {
		return ContractStatus{}, s.statusErr
	}
	return nextScripted(&s.contractStatuses), nil
}

func (s *stubLedgerAPI) SubmitTokenTypeCreation(ctx context.Context, in SubmitTokenTypeInput) (Submission, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	if s.submitTokenTypeFn != nil {
		return s.submitTokenTypeFn(ctx, in)
	}
	return Submission{OperationID: "token-type-1", InitialStatus: StatusPending}, nil
}

func (s *stubLedgerAPI) GetTokenTypeCreationStatus(context.Context, string) (TokenTypeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusChecks++
	if s.statusErr != nil {
		return TokenTypeStatus{}, s.statusErr
	}
	return nextScripted(&s.tokenTypeStatuses), nil
}

func (s *stubLedgerAPI) SubmitMint(ctx context.Context, in SubmitMintInput) (Submission, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	if s.submitMintFn != nil {
		return s.submitMintFn(ctx, in)
	}
	return Submission{OperationID: "mint-1", InitialStatus: StatusPending}, nil
}

func (s *stubLedgerAPI) GetMintStatus(context.Context, string) (MintStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusChecks++
	if s.statusErr != nil {
		return MintStatus{}, s.statusErr
	}
	return nextScripted(&s.mintStatuses), nil
}

func (s *stubLedgerAPI) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits, s.statusChecks
}

func nextScripted[T any](items *[]T) T {
	var zero T
	if len(*items) == 0 {
		return zero
	}
	item := (*items)[0]
	if len(*items) > 1 {
		*items = (*items)[1:]
	}
	return item
}

type captureNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *captureNotifier) Notify(_ context.Context, notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification)
}

func (n *captureNotifier) levels() []NotificationLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationLevel, 0, len(n.items))
	for _, item := range n.items {
		out = append(out, item.Level)
	}
	return out
}

func hasNotification(items []NotificationLevel, level NotificationLevel) bool {
	for _, item := range items {
		if item == level {
			return true
		}
	}
	return false
}

// fastPollConfig keeps the default attempt budget but polls every millisecond.
func fastPollConfig() Config {
	cfg := DefaultConfig()
	cfg.Polling.Interval = time.Millisecond
	return cfg
}

type serviceFixture struct {
	svc        *Service
	api        *stubLedgerAPI
	issuer     *stubTokenIssuer
	operations *memoryOperationStore
	progress   *memoryProgressStore
	notifier   *captureNotifier
}

func newServiceFixture(opts ...Option) (*serviceFixture, error) {
	fixture := &serviceFixture{
		api:        &stubLedgerAPI{},
		issuer:     &stubTokenIssuer{},
		operations: &memoryOperationStore{},
		progress:   &memoryProgressStore{},
		notifier:   &captureNotifier{},
	}
	base := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithLedgerAPI(fixture.api),
		WithTokenIssuer(fixture.issuer),
		WithCredentialStore(&memoryCredentialStore{}),
		WithOperationStore(fixture.operations),
		WithProgressStore(fixture.progress),
		WithNotifier(fixture.notifier),
	}
	svc, err := NewService(fastPollConfig(), append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	fixture.svc = svc
	return fixture, nil
}

func succeededContract() ContractStatus {
	return ContractStatus{
		Status: StatusSucceeded,
		Contract: ContractResult{
			Address: "0xcontract",
			Chain:   "MATIC",
			Name:    "Ekwel Cash",
			Image:   "https://example.com/bill.jpg",
		},
	}
}

func succeededTokenType() TokenTypeStatus {
	return TokenTypeStatus{
		Status: StatusSucceeded,
		TokenType: TokenTypeResult{
			TokenTypeID: 7,
			Metadata:    TokenMetadata{Name: "Ekwel Cash", Image: "https://example.com/bill.jpg"},
		},
	}
}
