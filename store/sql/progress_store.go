package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-mintflow/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProgressStore keeps one workflow position per profile. The busy flag is
// not persisted.
type ProgressStore struct {
	db      *bun.DB
	repo    repository.Repository[*progressRecord]
	profile string
}

func NewProgressStore(db *bun.DB, profile string) (*ProgressStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*progressRecord](db, progressHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid progress repository wiring: %w", err)
		}
	}
	return &ProgressStore{db: db, repo: repo, profile: normalizeProfile(profile)}, nil
}

func (s *ProgressStore) Load(ctx context.Context) (core.ProgressState, bool, error) {
	if s == nil || s.repo == nil {
		return core.ProgressState{}, false, fmt.Errorf("sqlstore: progress store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("profile", "=", s.profile),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ProgressState{}, false, err
	}
	if len(records) == 0 {
		return core.ProgressState{}, false, nil
	}
	record := records[0]
	return core.ProgressState{
		CurrentStage:        core.Stage(record.CurrentStage),
		HighestStageReached: core.Stage(record.HighestStageReached),
		Data:                record.Data,
		UpdatedAt:           record.UpdatedAt.UTC(),
	}, true, nil
}

func (s *ProgressStore) Save(ctx context.Context, state core.ProgressState) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: progress store is not configured")
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	record := &progressRecord{
		ID:                  uuid.NewString(),
		Profile:             s.profile,
		CurrentStage:        int(state.CurrentStage),
		HighestStageReached: int(state.HighestStageReached),
		Data:                state.Data,
		UpdatedAt:           updatedAt.UTC(),
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*progressRecord)(nil)).
			Where("profile = ?", s.profile).
			Exec(ctx); err != nil {
			return err
		}
		_, err := s.repo.CreateTx(ctx, tx, record)
		return err
	})
}
