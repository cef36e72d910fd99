package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-mintflow/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// OperationStore persists the ledger of one profile. Insertion order is kept
// in a per-profile sequence column so List can return newest first even when
// two records share a submission timestamp.
type OperationStore struct {
	db      *bun.DB
	repo    repository.Repository[*operationRecord]
	profile string
}

func NewOperationStore(db *bun.DB, profile string) (*OperationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*operationRecord](db, operationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid operation repository wiring: %w", err)
		}
	}
	return &OperationStore{db: db, repo: repo, profile: normalizeProfile(profile)}, nil
}

func (s *OperationStore) List(ctx context.Context) ([]core.OperationRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: operation store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("profile", "=", s.profile),
		repository.OrderBy("sequence DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.OperationRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *OperationStore) Insert(ctx context.Context, record core.OperationRecord) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: operation store is not configured")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return core.NewValidationError("id", "operation id is required")
	}
	record.ID = id

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*operationRecord)(nil)).
			Where("?TableAlias.id = ?", id).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewDuplicateIDError(id)
		}
		sequence, err := s.nextSequence(ctx, tx)
		if err != nil {
			return err
		}
		row := newOperationRecord(record, sequence)
		row.Profile = s.profile
		_, err = s.repo.CreateTx(ctx, tx, row)
		return err
	})
}

func (s *OperationStore) Update(ctx context.Context, record core.OperationRecord) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: operation store is not configured")
	}
	id := strings.TrimSpace(record.ID)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectBy("profile", "=", s.profile),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return core.NewNotFoundError(id)
	}
	current := records[0]
	current.Status = string(record.Status)
	current.Payload = clonePayload(record.Payload)
	current.UpdatedAt = record.UpdatedAt.UTC()
	_, err = s.repo.Update(ctx, current, repository.UpdateByID(id))
	return err
}

func (s *OperationStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: operation store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*operationRecord)(nil)).
		Where("profile = ?", s.profile).
		Exec(ctx)
	return err
}

func (s *OperationStore) nextSequence(ctx context.Context, tx bun.Tx) (int64, error) {
	var maxSequence int64
	if err := tx.NewSelect().
		Model((*operationRecord)(nil)).
		ColumnExpr("COALESCE(MAX(sequence), 0)").
		Where("?TableAlias.profile = ?", s.profile).
		Scan(ctx, &maxSequence); err != nil {
		return 0, err
	}
	return maxSequence + 1, nil
}

func newOperationRecord(in core.OperationRecord, sequence int64) *operationRecord {
	updatedAt := in.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = in.SubmittedAt
	}
	return &operationRecord{
		ID:          strings.TrimSpace(in.ID),
		Sequence:    sequence,
		Kind:        string(in.Kind),
		Status:      string(in.Status),
		Payload:     clonePayload(in.Payload),
		SubmittedAt: in.SubmittedAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}
}

func (r *operationRecord) toDomain() core.OperationRecord {
	if r == nil {
		return core.OperationRecord{}
	}
	return core.OperationRecord{
		ID:          r.ID,
		Kind:        core.OperationKind(r.Kind),
		Status:      core.Status(r.Status),
		Payload:     clonePayload(r.Payload),
		SubmittedAt: r.SubmittedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func clonePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	return out
}
