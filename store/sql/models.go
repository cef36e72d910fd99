package sqlstore

import (
	"time"

	"github.com/goliatone/go-mintflow/core"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:mintflow_credentials,alias:mc"`

	ID                string     `bun:"id,pk"`
	Profile           string     `bun:"profile,notnull"`
	EncryptedPayload  []byte     `bun:"encrypted_payload,notnull"`
	PayloadFormat     string     `bun:"payload_format,notnull"`
	PayloadVersion    int        `bun:"payload_version,notnull"`
	TokenType         string     `bun:"token_type,notnull"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero"`
	EncryptionKeyID   string     `bun:"encryption_key_id,notnull"`
	EncryptionVersion int        `bun:"encryption_version,notnull"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type operationRecord struct {
	bun.BaseModel `bun:"table:mintflow_operations,alias:mo"`

	ID          string         `bun:"id,pk"`
	Profile     string         `bun:"profile,notnull"`
	Sequence    int64          `bun:"sequence,notnull"`
	Kind        string         `bun:"kind,notnull"`
	Status      string         `bun:"status,notnull"`
	Payload     map[string]any `bun:"payload,type:jsonb,notnull"`
	SubmittedAt time.Time      `bun:"submitted_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

type progressRecord struct {
	bun.BaseModel `bun:"table:mintflow_progress,alias:mp"`

	ID                  string         `bun:"id,pk"`
	Profile             string         `bun:"profile,notnull"`
	CurrentStage        int            `bun:"current_stage,notnull"`
	HighestStageReached int            `bun:"highest_stage_reached,notnull"`
	Data                core.StageData `bun:"data,type:jsonb,notnull"`
	UpdatedAt           time.Time      `bun:"updated_at,notnull"`
}
