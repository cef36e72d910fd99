package core

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further status change is expected remotely.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseRemoteStatus normalizes the remote status vocabulary. The legacy
// "SUCCESS" spelling is folded into StatusSucceeded. Unknown values map to
// StatusPending with ok=false.
func ParseRemoteStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "QUEUED", "PROCESSING":
		return StatusPending, true
	case "SUCCEEDED", "SUCCESS":
		return StatusSucceeded, true
	case "FAILED", "FAILURE", "ERROR":
		return StatusFailed, true
	default:
		return StatusPending, false
	}
}

type OperationKind string

const (
	OperationContractDeployment OperationKind = "CONTRACT_DEPLOYMENT"
	OperationTokenTypeCreation  OperationKind = "TOKEN_CREATION"
	OperationMint               OperationKind = "TOKEN_MINT"
)

func (k OperationKind) Valid() bool {
	switch k {
	case OperationContractDeployment, OperationTokenTypeCreation, OperationMint:
		return true
	default:
		return false
	}
}

func (k OperationKind) Stage() Stage {
	switch k {
	case OperationContractDeployment:
		return StageDeploy
	case OperationTokenTypeCreation:
		return StageTokenType
	case OperationMint:
		return StageMint
	default:
		return 0
	}
}

type Stage int

const (
	StageDeploy    Stage = 1
	StageTokenType Stage = 2
	StageMint      Stage = 3

	FirstStage = StageDeploy
	LastStage  = StageMint
)

func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

func (s Stage) String() string {
	switch s {
	case StageDeploy:
		return "deploy"
	case StageTokenType:
		return "token_type"
	case StageMint:
		return "mint"
	default:
		return "unknown"
	}
}

func (s Stage) OperationKind() OperationKind {
	switch s {
	case StageDeploy:
		return OperationContractDeployment
	case StageTokenType:
		return OperationTokenTypeCreation
	case StageMint:
		return OperationMint
	default:
		return ""
	}
}

type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// TokenState is the persisted credential and access token pair. Token is only
// set together with ExpiresAt.
type TokenState struct {
	Identity  *Credentials
	Token     string
	TokenType string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
}

func (s TokenState) HasToken() bool {
	return strings.TrimSpace(s.Token) != "" && s.ExpiresAt != nil
}

type IssuedToken struct {
	Token     string
	TokenType string
	Scope     string
	TTL       time.Duration
}

type OperationRecord struct {
	ID          string
	Kind        OperationKind
	Status      Status
	Payload     map[string]any
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// OperationPatch is merged into an existing record. A nil Status keeps the
// current status.
type OperationPatch struct {
	Status  *Status
	Payload map[string]any
}

type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type ContractResult struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Status      Status `json:"status,omitempty"`
}

type TokenTypeResult struct {
	ID          string        `json:"id"`
	TokenTypeID int64         `json:"tokenTypeId"`
	Status      Status        `json:"status,omitempty"`
	Metadata    TokenMetadata `json:"metadata"`
}

type MintResult struct {
	ID              string        `json:"id"`
	Status          Status        `json:"status,omitempty"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	Destinations    []Destination `json:"destinations,omitempty"`
}

type StageData struct {
	Contract  *ContractResult  `json:"contract,omitempty"`
	TokenType *TokenTypeResult `json:"tokenType,omitempty"`
}

// StageResult carries the data a completed stage hands to the next one.
type StageResult struct {
	Contract  *ContractResult
	TokenType *TokenTypeResult
}

type ProgressState struct {
	CurrentStage        Stage
	HighestStageReached Stage
	Data                StageData
	Busy                bool
	UpdatedAt           time.Time
}

func InitialProgressState() ProgressState {
	return ProgressState{
		CurrentStage:        FirstStage,
		HighestStageReached: FirstStage,
	}
}

type Destination struct {
	Address string `json:"address"`
	Amount  int    `json:"amount"`
}

type DeployContractRequest struct {
	Name        string
	Description string
	Image       string
	ExternalURL string
	Chain       string
}

type CreateTokenTypeRequest struct {
	Name        string
	Description string
	Image       string
}

type MintRequest struct {
	Destinations []Destination
}

type SubmitTokenTypeInput struct {
	Chain           string
	ContractAddress string
	Name            string
	Description     string
	Image           string
}

type SubmitMintInput struct {
	Chain           string
	ContractAddress string
	TokenTypeID     int64
	Destinations    []Destination
}

// Submission is what the remote API returns when it accepts an operation.
type Submission struct {
	OperationID   string
	InitialStatus Status
	Raw           map[string]any
}

type ContractStatus struct {
	Status   Status
	Contract ContractResult
	Raw      map[string]any
}

type TokenTypeStatus struct {
	Status    Status
	TokenType TokenTypeResult
	Raw       map[string]any
}

type MintStatus struct {
	Status Status
	Mint   MintResult
	Raw    map[string]any
}

// StageOutcome summarizes one stage driver run for callers.
type StageOutcome struct {
	Stage       Stage
	OperationID string
	Status      Status
	Attempts    int
	TimedOut    bool
	Cancelled   bool
	Contract    *ContractResult
	TokenType   *TokenTypeResult
	Mint        *MintResult
	Progress    ProgressState
}

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

type Notification struct {
	Level       NotificationLevel
	Message     string
	OperationID string
	Kind        OperationKind
	Attempt     int
	MaxAttempts int
	Status      Status
}
