package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// stageCheck is one status reading of a submitted operation, normalized
// across the three kinds.
type stageCheck struct {
	Status    Status
	Payload   map[string]any
	Result    StageResult
	Contract  *ContractResult
	TokenType *TokenTypeResult
	Mint      *MintResult
}

type stageRun struct {
	stage   Stage
	payload map[string]any
	submit  func(ctx context.Context) (Submission, error)
}

type stageLabels struct {
	submitted string
	succeeded string
	failed    string
	timedOut  string
	errored   string
}

var stageMessages = map[Stage]stageLabels{
	StageDeploy: {
		submitted: "Contract deployment initiated. Please wait...",
		succeeded: "Contract deployed successfully!",
		failed:    "Contract deployment failed",
		timedOut:  "Deployment timeout",
		errored:   "Failed to check deployment status",
	},
	StageTokenType: {
		submitted: "Token type creation initiated. Please wait...",
		succeeded: "Token type created successfully!",
		failed:    "Token type creation failed",
		timedOut:  "Creation timeout",
		errored:   "Failed to check creation status",
	},
	StageMint: {
		submitted: "Minting initiated. Please wait...",
		succeeded: "Minting completed successfully!",
		failed:    "Minting failed",
		timedOut:  "Minting timeout",
		errored:   "Failed to check minting status",
	},
}

func (s *Service) DeployContract(ctx context.Context, req DeployContractRequest) (outcome StageOutcome, err error) {
	startedAt := time.Now().UTC()
	req = req.Normalize()
	fields := map[string]any{"stage": StageDeploy.String(), "kind": string(OperationContractDeployment), "chain": req.Chain}
	defer func() {
		fields["operation_id"] = outcome.OperationID
		s.observeOperation(ctx, startedAt, "deploy_contract", err, fields)
	}()

	if err = req.Validate(); err != nil {
		return s.rejectStage(ctx, StageDeploy, err)
	}
	supported, err := s.chains.Supports(ctx, req.Chain)
	if err != nil {
		return s.rejectStage(ctx, StageDeploy, s.mapError(err))
	}
	if !supported {
		return s.rejectStage(ctx, StageDeploy, NewValidationError("chain", fmt.Sprintf("chain %s is not supported", req.Chain)))
	}

	return s.runStage(ctx, stageRun{
		stage: StageDeploy,
		payload: map[string]any{
			"name":        req.Name,
			"description": req.Description,
			"image":       req.Image,
			"externalUrl": req.ExternalURL,
			"chain":       req.Chain,
		},
		submit: func(ctx context.Context) (Submission, error) {
			return s.api.SubmitContractDeployment(ctx, req)
		},
	}, nil)
}

// CreateTokenType registers a token type on the contract deployed in the
// first stage. A blank image falls back to the contract image.
func (s *Service) CreateTokenType(ctx context.Context, req CreateTokenTypeRequest) (outcome StageOutcome, err error) {
	startedAt := time.Now().UTC()
	req = req.Normalize()
	fields := map[string]any{"stage": StageTokenType.String(), "kind": string(OperationTokenTypeCreation)}
	defer func() {
		fields["operation_id"] = outcome.OperationID
		s.observeOperation(ctx, startedAt, "create_token_type", err, fields)
	}()

	if err = req.Validate(); err != nil {
		return s.rejectStage(ctx, StageTokenType, err)
	}

	return s.runStage(ctx, stageRun{stage: StageTokenType}, func(lease ProgressLease, run *stageRun) {
		contract := lease.State.Data.Contract
		image := req.Image
		if image == "" {
			image = contract.Image
		}
		if image == "" {
			image = s.config.Defaults.Image
		}
		input := SubmitTokenTypeInput{
			Chain:           contract.Chain,
			ContractAddress: contract.Address,
			Name:            req.Name,
			Description:     req.Description,
			Image:           image,
		}
		fields["chain"] = input.Chain
		run.payload = map[string]any{
			"chain":           input.Chain,
			"contractAddress": input.ContractAddress,
			"name":            input.Name,
			"description":     input.Description,
			"image":           input.Image,
		}
		run.submit = func(ctx context.Context) (Submission, error) {
			return s.api.SubmitTokenTypeCreation(ctx, input)
		}
	})
}

// Mint sends tokens of the type created in the second stage. A successful mint
// completes the workflow and resets it to the first stage.
func (s *Service) Mint(ctx context.Context, req MintRequest) (outcome StageOutcome, err error) {
	startedAt := time.Now().UTC()
	req = req.Normalize()
	fields := map[string]any{"stage": StageMint.String(), "kind": string(OperationMint)}
	defer func() {
		fields["operation_id"] = outcome.OperationID
		s.observeOperation(ctx, startedAt, "mint", err, fields)
	}()

	if err = req.Validate(); err != nil {
		return s.rejectStage(ctx, StageMint, err)
	}

	return s.runStage(ctx, stageRun{stage: StageMint}, func(lease ProgressLease, run *stageRun) {
		data := lease.State.Data
		input := SubmitMintInput{
			Chain:           data.Contract.Chain,
			ContractAddress: data.Contract.Address,
			TokenTypeID:     data.TokenType.TokenTypeID,
			Destinations:    append([]Destination(nil), req.Destinations...),
		}
		fields["chain"] = input.Chain
		run.payload = map[string]any{
			"chain":           input.Chain,
			"contractAddress": input.ContractAddress,
			"tokenTypeId":     input.TokenTypeID,
			"destinations":    toPayloadList(input.Destinations),
		}
		run.submit = func(ctx context.Context) (Submission, error) {
			return s.api.SubmitMint(ctx, input)
		}
	})
}

// Recheck reads the remote status of a recorded operation once. A terminal
// status is written to the ledger, and a success advances the workflow when
// the operation belongs to the current stage and no submission is in flight.
func (s *Service) Recheck(ctx context.Context, id string) (outcome StageOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"operation_id": strings.TrimSpace(id)}
	defer func() {
		s.observeOperation(ctx, startedAt, "recheck", err, fields)
	}()

	record, err := s.ledger.Get(id)
	if err != nil {
		err = s.mapError(err)
		return StageOutcome{}, err
	}
	stage := record.Kind.Stage()
	fields["stage"] = stage.String()
	fields["kind"] = string(record.Kind)
	outcome = StageOutcome{Stage: stage, OperationID: record.ID, Status: record.Status}
	if record.Status.Terminal() {
		outcome.Progress = s.progress.Snapshot()
		return outcome, nil
	}
	if s.api == nil {
		err = NewTransportError("ledger api is not configured", nil)
		return outcome, err
	}

	result := Poll(ctx, func(ctx context.Context) (stageCheck, error) {
		return s.checkOperation(ctx, record.Kind, record.ID)
	}, PollOptions[stageCheck]{MaxAttempts: 0, IsTerminal: func(stageCheck) bool { return true }})
	outcome.Attempts = result.Attempts
	if result.Err != nil {
		err = s.mapError(result.Err)
		return outcome, err
	}
	check := result.Value
	outcome.Status = check.Status
	outcome.Contract, outcome.TokenType, outcome.Mint = check.Contract, check.TokenType, check.Mint
	if !check.Status.Terminal() {
		outcome.Progress = s.progress.Snapshot()
		return outcome, nil
	}

	status := check.Status
	if _, err = s.ledger.Update(ctx, record.ID, OperationPatch{Status: &status, Payload: check.Payload}); err != nil {
		err = s.mapError(err)
		return outcome, err
	}
	progress := s.progress.Snapshot()
	if status == StatusSucceeded && progress.CurrentStage == stage && !progress.Busy {
		if err = s.completeStage(ctx, stage, check.Result, nil); err != nil {
			err = s.mapError(err)
			return outcome, err
		}
	}
	outcome.Progress = s.progress.Snapshot()
	if status == StatusFailed {
		err = NewOperationFailedError(record.Kind, record.ID)
	}
	return outcome, err
}

// runStage claims the stage, submits, records the operation and polls it to a
// terminal status. prepare fills the submission from the claimed progress
// state.
func (s *Service) runStage(ctx context.Context, run stageRun, prepare func(ProgressLease, *stageRun)) (outcome StageOutcome, err error) {
	outcome = StageOutcome{Stage: run.stage, Status: StatusPending}
	if s.api == nil {
		return s.rejectStage(ctx, run.stage, NewTransportError("ledger api is not configured", nil))
	}
	lease, err := s.progress.Begin(ctx, run.stage)
	if err != nil {
		return s.rejectStage(ctx, run.stage, s.mapError(err))
	}
	defer func() {
		if releaseErr := s.progress.Release(context.WithoutCancel(ctx), lease); releaseErr != nil {
			s.log(ctx, levelError, "failed to release workflow stage", map[string]any{
				"stage": run.stage.String(),
				"error": releaseErr.Error(),
			})
		}
		outcome.Progress = s.progress.Snapshot()
	}()
	// A reset or logout cancels runCtx and voids the lease. Anything that
	// arrives afterwards is dropped.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	s.trackPoll(lease.ID, cancelRun)
	defer s.untrackPoll(lease.ID)

	if prepare != nil {
		prepare(lease, &run)
	}

	kind := run.stage.OperationKind()
	labels := stageMessages[run.stage]

	submission, err := run.submit(runCtx)
	if !s.progress.Holds(lease) {
		return s.discardStage(ctx, outcome, submission.OperationID)
	}
	if err != nil {
		s.notifyError(ctx, kind, "", err)
		return outcome, s.mapError(err)
	}
	id := strings.TrimSpace(submission.OperationID)
	if id == "" {
		err = NewTransportError("remote api accepted the submission without an operation id", map[string]any{"kind": string(kind)})
		s.notifyError(ctx, kind, "", err)
		return outcome, err
	}
	outcome.OperationID = id

	if _, err = s.ledger.Append(ctx, OperationRecord{ID: id, Kind: kind, Payload: run.payload}); err != nil {
		s.notifyError(ctx, kind, id, err)
		return outcome, s.mapError(err)
	}
	s.notify(ctx, Notification{Level: NotificationInfo, Message: labels.submitted, OperationID: id, Kind: kind, Status: StatusPending})

	maxAttempts := s.config.pollMaxAttempts()
	session := StartPoll(runCtx, func(ctx context.Context) (stageCheck, error) {
		return s.checkOperation(ctx, kind, id)
	}, PollOptions[stageCheck]{
		Interval:    s.config.pollInterval(),
		MaxAttempts: maxAttempts,
		IsTerminal:  func(check stageCheck) bool { return check.Status.Terminal() },
		OnAttempt: func(attempt PollAttempt[stageCheck]) {
			s.log(ctx, levelDebug, "status check", map[string]any{
				"operation_id": id,
				"kind":         string(kind),
				"attempt":      attempt.Attempt,
				"max_attempts": attempt.MaxAttempts,
				"status":       string(attempt.Result.Status),
			})
		},
		Metadata: map[string]any{"operation_id": id, "kind": string(kind)},
	})
	s.trackPoll(id, session.Cancel)
	<-session.Done()
	s.untrackPoll(id)

	result := session.Result()
	outcome.Attempts = result.Attempts

	switch result.Outcome {
	case PollCancelled:
		if !s.progress.Holds(lease) {
			return s.discardStage(ctx, outcome, id)
		}
		outcome.Cancelled = true
		return outcome, result.Err
	case PollTimedOut:
		outcome.TimedOut = true
		s.notify(ctx, Notification{Level: NotificationWarning, Message: labels.timedOut, OperationID: id, Kind: kind, Attempt: result.Attempts, MaxAttempts: maxAttempts, Status: StatusPending})
		return outcome, result.Err
	case PollErrored:
		s.notify(ctx, Notification{Level: NotificationError, Message: labels.errored, OperationID: id, Kind: kind, Attempt: result.Attempts, MaxAttempts: maxAttempts, Status: StatusPending})
		return outcome, s.mapError(result.Err)
	}

	check := result.Value
	outcome.Status = check.Status
	outcome.Contract, outcome.TokenType, outcome.Mint = check.Contract, check.TokenType, check.Mint
	status := check.Status
	if _, err = s.ledger.Update(ctx, id, OperationPatch{Status: &status, Payload: check.Payload}); err != nil {
		// progress stays put until the ledger agrees; Recheck repairs it
		s.notifyError(ctx, kind, id, err)
		return outcome, s.mapError(err)
	}

	if status == StatusFailed {
		s.notify(ctx, Notification{Level: NotificationError, Message: labels.failed, OperationID: id, Kind: kind, Attempt: result.Attempts, Status: status})
		return outcome, NewOperationFailedError(kind, id)
	}
	if err = s.completeStage(ctx, run.stage, check.Result, &lease); err != nil {
		if IsStaleLeaseError(err) {
			return s.discardStage(ctx, outcome, id)
		}
		return outcome, s.mapError(err)
	}
	s.notify(ctx, Notification{Level: NotificationSuccess, Message: labels.succeeded, OperationID: id, Kind: kind, Attempt: result.Attempts, Status: status})
	return outcome, nil
}

// rejectStage reports an error raised before anything was submitted.
func (s *Service) rejectStage(ctx context.Context, stage Stage, err error) (StageOutcome, error) {
	s.notifyError(ctx, stage.OperationKind(), "", err)
	return StageOutcome{Stage: stage, Status: StatusPending, Progress: s.progress.Snapshot()}, err
}

func (s *Service) notifyError(ctx context.Context, kind OperationKind, id string, err error) {
	if err == nil {
		return
	}
	s.notify(ctx, Notification{Level: NotificationError, Message: err.Error(), OperationID: id, Kind: kind})
}

// discardStage ends a run whose lease was voided by a reset or logout. The
// late result is not applied and no notification is sent.
func (s *Service) discardStage(ctx context.Context, outcome StageOutcome, id string) (StageOutcome, error) {
	outcome.Cancelled = true
	s.log(ctx, levelInfo, "discarded result of a reset stage", map[string]any{
		"stage":        outcome.Stage.String(),
		"operation_id": strings.TrimSpace(id),
	})
	return outcome, nil
}

// completeStage advances past stage. A driver passes its lease so a reset
// in between wins; Recheck passes nil. Finishing the last stage starts the
// workflow over.
func (s *Service) completeStage(ctx context.Context, stage Stage, result StageResult, lease *ProgressLease) error {
	var err error
	if lease != nil {
		_, err = s.progress.AdvanceWithLease(ctx, *lease, result)
	} else {
		_, err = s.progress.Advance(ctx, stage, result)
	}
	if err != nil {
		return err
	}
	if stage == LastStage {
		if _, err := s.progress.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkOperation(ctx context.Context, kind OperationKind, id string) (stageCheck, error) {
	switch kind {
	case OperationContractDeployment:
		status, err := s.api.GetContractDeploymentStatus(ctx, id)
		if err != nil {
			return stageCheck{}, err
		}
		contract := status.Contract
		if contract.ID == "" {
			contract.ID = id
		}
		contract.Status = status.Status
		if status.Status == StatusSucceeded && (strings.TrimSpace(contract.Address) == "" || strings.TrimSpace(contract.Chain) == "") {
			return stageCheck{}, NewTransportError("deployment succeeded without contract address or chain", map[string]any{"operation_id": id})
		}
		return stageCheck{
			Status:   status.Status,
			Payload:  toPayload(contract),
			Result:   StageResult{Contract: &contract},
			Contract: &contract,
		}, nil
	case OperationTokenTypeCreation:
		status, err := s.api.GetTokenTypeCreationStatus(ctx, id)
		if err != nil {
			return stageCheck{}, err
		}
		tokenType := status.TokenType
		if tokenType.ID == "" {
			tokenType.ID = id
		}
		tokenType.Status = status.Status
		if status.Status == StatusSucceeded && tokenType.TokenTypeID <= 0 {
			return stageCheck{}, NewTransportError("token type creation succeeded without a token type id", map[string]any{"operation_id": id})
		}
		return stageCheck{
			Status:    status.Status,
			Payload:   toPayload(tokenType),
			Result:    StageResult{TokenType: &tokenType},
			TokenType: &tokenType,
		}, nil
	case OperationMint:
		status, err := s.api.GetMintStatus(ctx, id)
		if err != nil {
			return stageCheck{}, err
		}
		mint := status.Mint
		if mint.ID == "" {
			mint.ID = id
		}
		mint.Status = status.Status
		return stageCheck{
			Status:  status.Status,
			Payload: toPayload(mint),
			Mint:    &mint,
		}, nil
	default:
		return stageCheck{}, NewValidationError("kind", fmt.Sprintf("unknown operation kind %q", kind))
	}
}

// toPayload flattens a result struct into the generic payload map stored on
// ledger records.
func toPayload(value any) map[string]any {
	raw, err := json.Marshal(value)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func toPayloadList(destinations []Destination) []any {
	out := make([]any, 0, len(destinations))
	for _, destination := range destinations {
		out = append(out, map[string]any{"address": destination.Address, "amount": destination.Amount})
	}
	return out
}
