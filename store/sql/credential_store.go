package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-mintflow/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultProfile = "default"

type keyedSecretProvider interface {
	KeyID() string
	Version() int
}

// CredentialStore keeps the client credentials and the current token for one
// profile, encrypted at rest.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	secrets core.SecretProvider
	codec   core.TokenStateCodec
	profile string
}

func (s *CredentialStore) Load(ctx context.Context) (core.TokenState, error) {
	if err := s.ready(); err != nil {
		return core.TokenState{}, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("profile", "=", s.profile),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenState{}, err
	}
	if len(records) == 0 {
		return core.TokenState{}, nil
	}
	record := records[0]
	if record.PayloadFormat != s.codec.Format() {
		return core.TokenState{}, fmt.Errorf("sqlstore: unsupported credential payload format %q", record.PayloadFormat)
	}
	plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedPayload)
	if err != nil {
		return core.TokenState{}, fmt.Errorf("sqlstore: decrypt credential payload: %w", err)
	}
	return s.codec.Decode(plaintext)
}

// Save replaces the profile's row.
func (s *CredentialStore) Save(ctx context.Context, state core.TokenState) error {
	if err := s.ready(); err != nil {
		return err
	}
	plaintext, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	ciphertext, err := s.secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("sqlstore: encrypt credential payload: %w", err)
	}

	now := time.Now().UTC()
	record := &credentialRecord{
		ID:                uuid.NewString(),
		Profile:           s.profile,
		EncryptedPayload:  ciphertext,
		PayloadFormat:     s.codec.Format(),
		PayloadVersion:    s.codec.Version(),
		TokenType:         strings.TrimSpace(state.TokenType),
		EncryptionKeyID:   "unknown",
		EncryptionVersion: 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if state.HasToken() {
		expiresAt := state.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	if keyed, ok := s.secrets.(keyedSecretProvider); ok {
		record.EncryptionKeyID = keyed.KeyID()
		record.EncryptionVersion = keyed.Version()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*credentialRecord)(nil)).
			Where("profile = ?", s.profile).
			Exec(ctx); err != nil {
			return err
		}
		_, err := s.repo.CreateTx(ctx, tx, record)
		return err
	})
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("profile = ?", s.profile).
		Exec(ctx)
	return err
}

func (s *CredentialStore) ready() error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if s.secrets == nil {
		return fmt.Errorf("sqlstore: credential store requires a secret provider")
	}
	if s.codec == nil {
		return fmt.Errorf("sqlstore: credential store requires a payload codec")
	}
	return nil
}
