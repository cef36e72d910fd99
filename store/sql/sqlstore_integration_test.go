package sqlstore_test

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-mintflow/core"
	mintflowmigrations "github.com/goliatone/go-mintflow/migrations"
	"github.com/goliatone/go-mintflow/security"
	sqlstore "github.com/goliatone/go-mintflow/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-mintflow-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"mintflow_operations",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "mintflow_operations" {
		t.Fatalf("expected mintflow_operations table, got %q", tableName)
	}
}

func TestFactory_WithoutSecretProviderSkipsCredentialStore(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if factory.CredentialStore() != nil {
		t.Fatalf("expected no credential store without a secret provider")
	}
	if factory.OperationStore() == nil || factory.ProgressStore() == nil {
		t.Fatalf("expected operation and progress stores")
	}
	if got := len(factory.Options()); got != 2 {
		t.Fatalf("expected two service options, got %d", got)
	}
}

func TestCredentialStore_EncryptsAndRestores(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	secrets, err := security.NewAppKeySecretProvider([]byte("integration-app-key"), security.WithKeyID("test-key"))
	if err != nil {
		t.Fatalf("secret provider: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithSecretProvider(secrets))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.CredentialStore()
	if store == nil {
		t.Fatalf("expected credential store")
	}

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if empty.Identity != nil || empty.HasToken() {
		t.Fatalf("expected empty state before save")
	}

	expiresAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	state := core.TokenState{
		Identity:  &core.Credentials{ClientID: "client-1", ClientSecret: "secret-1"},
		Token:     "token-1",
		TokenType: "Bearer",
		ExpiresAt: &expiresAt,
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state.Token = "token-2"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save again: %v", err)
	}

	var rows int
	var keyID string
	var payload []byte
	if err := client.DB().NewRaw(
		"SELECT COUNT(*), MAX(encryption_key_id), MAX(encrypted_payload) FROM mintflow_credentials",
	).Scan(ctx, &rows, &keyID, &payload); err != nil {
		t.Fatalf("inspect credential rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single credential row per profile, got %d", rows)
	}
	if keyID != "test-key" {
		t.Fatalf("expected key id test-key, got %q", keyID)
	}
	if bytes.Contains(payload, []byte("secret-1")) {
		t.Fatalf("expected client secret to be encrypted at rest")
	}

	restored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Identity == nil || restored.Identity.ClientSecret != "secret-1" {
		t.Fatalf("expected identity restored, got %#v", restored.Identity)
	}
	if restored.Token != "token-2" || !restored.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected latest token restored, got %q", restored.Token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cleared, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if cleared.Identity != nil {
		t.Fatalf("expected identity wiped")
	}
}

func TestCredentialStore_WrongKeyFailsToDecrypt(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	writer, _ := security.NewAppKeySecretProvider([]byte("first-key"))
	reader, _ := security.NewAppKeySecretProvider([]byte("second-key"))

	writeFactory, err := sqlstore.NewRepositoryFactoryFromDB(client.DB(), sqlstore.WithSecretProvider(writer))
	if err != nil {
		t.Fatalf("writer factory: %v", err)
	}
	if err := writeFactory.CredentialStore().Save(ctx, core.TokenState{
		Identity: &core.Credentials{ClientID: "c", ClientSecret: "s"},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	readFactory, err := sqlstore.NewRepositoryFactoryFromDB(client.DB(), sqlstore.WithSecretProvider(reader))
	if err != nil {
		t.Fatalf("reader factory: %v", err)
	}
	if _, err := readFactory.CredentialStore().Load(ctx); err == nil {
		t.Fatalf("expected decrypt failure under a different app key")
	}
}

func TestOperationStore_ListsNewestFirstAndUpdates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.OperationStore()

	submittedAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"op-a", "op-b", "op-c"} {
		if err := store.Insert(ctx, core.OperationRecord{
			ID:          id,
			Kind:        core.OperationMint,
			Status:      core.StatusPending,
			Payload:     map[string]any{"chain": "MATIC"},
			SubmittedAt: submittedAt,
		}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	err = store.Insert(ctx, core.OperationRecord{ID: "op-b", Kind: core.OperationMint, Status: core.StatusPending, SubmittedAt: submittedAt})
	if !core.IsDuplicateIDError(err) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || records[0].ID != "op-c" || records[2].ID != "op-a" {
		t.Fatalf("expected newest first, got %v", operationIDs(records))
	}

	updated := records[1]
	updated.Status = core.StatusSucceeded
	updated.Payload = map[string]any{"chain": "MATIC", "transactionHash": "0xabc"}
	updated.UpdatedAt = submittedAt.Add(time.Minute)
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	records, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if records[1].Status != core.StatusSucceeded || records[1].Payload["transactionHash"] != "0xabc" {
		t.Fatalf("expected op-b updated, got %#v", records[1])
	}
	if records[0].ID != "op-c" {
		t.Fatalf("expected update to keep ordering, got %v", operationIDs(records))
	}

	if err := store.Update(ctx, core.OperationRecord{ID: "missing", Status: core.StatusFailed}); !core.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	records, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty ledger after clear, got %d", len(records))
	}
}

func TestOperationStore_KeepsProfilesApart(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	live, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithProfile("live"))
	if err != nil {
		t.Fatalf("new live factory: %v", err)
	}
	staging, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithProfile("staging"))
	if err != nil {
		t.Fatalf("new staging factory: %v", err)
	}

	submittedAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	insert := func(store core.OperationStore, id string) {
		t.Helper()
		if err := store.Insert(ctx, core.OperationRecord{
			ID:          id,
			Kind:        core.OperationContractDeployment,
			Status:      core.StatusPending,
			SubmittedAt: submittedAt,
		}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	insert(live.OperationStore(), "live-1")
	insert(staging.OperationStore(), "staging-1")
	insert(live.OperationStore(), "live-2")

	liveRecords, err := live.OperationStore().List(ctx)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if ids := operationIDs(liveRecords); len(ids) != 2 || ids[0] != "live-2" || ids[1] != "live-1" {
		t.Fatalf("expected only live records newest first, got %v", ids)
	}
	stagingRecords, err := staging.OperationStore().List(ctx)
	if err != nil {
		t.Fatalf("list staging: %v", err)
	}
	if ids := operationIDs(stagingRecords); len(ids) != 1 || ids[0] != "staging-1" {
		t.Fatalf("expected only the staging record, got %v", ids)
	}

	err = staging.OperationStore().Update(ctx, core.OperationRecord{ID: "live-1", Status: core.StatusSucceeded, UpdatedAt: submittedAt})
	if !core.IsNotFoundError(err) {
		t.Fatalf("expected another profile's record to be invisible, got %v", err)
	}

	if err := staging.OperationStore().Clear(ctx); err != nil {
		t.Fatalf("clear staging: %v", err)
	}
	liveRecords, err = live.OperationStore().List(ctx)
	if err != nil {
		t.Fatalf("list live after clear: %v", err)
	}
	if len(liveRecords) != 2 || liveRecords[1].Status != core.StatusPending {
		t.Fatalf("expected staging clear to leave live ledger intact, got %v", operationIDs(liveRecords))
	}
}

func TestProgressStore_RoundTripsStageData(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithProfile("demo"))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ProgressStore()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected no progress before save, ok=%v err=%v", ok, err)
	}

	state := core.ProgressState{
		CurrentStage:        core.StageTokenType,
		HighestStageReached: core.StageTokenType,
		Busy:                true,
		Data: core.StageData{
			Contract: &core.ContractResult{ID: "contract-1", Address: "0x1", Chain: "MATIC"},
		},
		UpdatedAt: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state.CurrentStage = core.StageMint
	state.HighestStageReached = core.StageMint
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.CurrentStage != core.StageMint || loaded.HighestStageReached != core.StageMint {
		t.Fatalf("expected latest stage restored, got %#v", loaded)
	}
	if loaded.Busy {
		t.Fatalf("expected busy flag not persisted")
	}
	if loaded.Data.Contract == nil || loaded.Data.Contract.Address != "0x1" {
		t.Fatalf("expected contract data restored, got %#v", loaded.Data)
	}
}

func TestServiceRestoresStateFromSQLStores(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	first, err := core.NewService(core.DefaultConfig(), factory.Options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := first.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	ledger := first.Dependencies().Ledger
	if _, err := ledger.Append(ctx, core.OperationRecord{ID: "deploy-1", Kind: core.OperationContractDeployment, Status: core.StatusPending}); err != nil {
		t.Fatalf("append: %v", err)
	}

	second, err := core.NewService(core.DefaultConfig(), factory.Options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	pending := second.PendingTransactions()
	if len(pending) != 1 || pending[0].ID != "deploy-1" {
		t.Fatalf("expected pending deployment restored, got %v", operationIDs(pending))
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:mintflow-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = mintflowmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != mintflowmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, mintflowmigrations.WithValidationTargets(mintflowmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func operationIDs(records []core.OperationRecord) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids
}
