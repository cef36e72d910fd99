package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProgressController gates the three workflow stages on the data each one
// needs from its predecessor.
type ProgressController struct {
	mu    sync.Mutex
	state ProgressState
	lease string
	store ProgressStore
	Now   func() time.Time
}

// ProgressLease is the claim a stage driver holds while its submission is
// in flight.
type ProgressLease struct {
	ID    string
	Stage Stage
	State ProgressState
}

func NewProgressController(store ProgressStore) *ProgressController {
	return &ProgressController{
		state: InitialProgressState(),
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Load restores persisted progress. Busy never survives a restart.
func (p *ProgressController) Load(ctx context.Context) error {
	if p == nil || p.store == nil {
		return nil
	}
	state, ok, err := p.store.Load(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !ok {
		p.state = InitialProgressState()
		return nil
	}
	state = normalizeProgressState(state)
	state.Busy = false
	p.state = state
	p.lease = ""
	return nil
}

func (p *ProgressController) Snapshot() ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneProgressState(p.state)
}

func (p *ProgressController) CanEnter(stage Stage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.CanEnter(stage)
}

// CanEnter reports whether the stage data carries everything stage needs.
func (s ProgressState) CanEnter(stage Stage) bool {
	return missingPrerequisite(s.Data, stage) == ""
}

// Begin claims the stage for a submission. It fails when a prerequisite is
// missing, when the stage is not the current one, or when another
// submission holds the workflow.
func (p *ProgressController) Begin(ctx context.Context, stage Stage) (ProgressLease, error) {
	if !stage.Valid() {
		return ProgressLease{}, NewValidationError("stage", "stage must be between 1 and 3")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if missing := missingPrerequisite(p.state.Data, stage); missing != "" {
		return ProgressLease{}, NewPrerequisiteError(stage, missing)
	}
	if stage != p.state.CurrentStage {
		return ProgressLease{}, NewOutOfOrderError(stage, p.state.CurrentStage)
	}
	if p.state.Busy {
		return ProgressLease{}, NewBusyError(stage)
	}
	next := cloneProgressState(p.state)
	next.Busy = true
	if err := p.commit(ctx, next); err != nil {
		return ProgressLease{}, err
	}
	p.lease = ulid.Make().String()
	return ProgressLease{ID: p.lease, Stage: stage, State: cloneProgressState(next)}, nil
}

// Release clears busy if lease still holds the workflow. A reset in between
// voids the lease and Release does nothing.
func (p *ProgressController) Release(ctx context.Context, lease ProgressLease) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lease.ID == "" || lease.ID != p.lease {
		return nil
	}
	p.lease = ""
	if !p.state.Busy {
		return nil
	}
	next := cloneProgressState(p.state)
	next.Busy = false
	return p.commit(ctx, next)
}

// SetBusy flips the busy flag directly, dropping any outstanding lease.
func (p *ProgressController) SetBusy(ctx context.Context, busy bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lease = ""
	if p.state.Busy == busy {
		return nil
	}
	next := cloneProgressState(p.state)
	next.Busy = busy
	return p.commit(ctx, next)
}

// Holds reports whether lease still owns the workflow.
func (p *ProgressController) Holds(lease ProgressLease) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lease.ID != "" && lease.ID == p.lease
}

// Advance records the result of stage and moves to the next one. Calling it
// for any stage other than the current one changes nothing.
func (p *ProgressController) Advance(ctx context.Context, stage Stage, result StageResult) (ProgressState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advance(ctx, stage, result)
}

// AdvanceWithLease advances lease's stage only while the lease still holds
// the workflow. A reset or logout since Begin voids it and the late result
// is rejected without touching the state.
func (p *ProgressController) AdvanceWithLease(ctx context.Context, lease ProgressLease, result StageResult) (ProgressState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lease.ID == "" || lease.ID != p.lease {
		return ProgressState{}, NewStaleLeaseError(lease.Stage)
	}
	return p.advance(ctx, lease.Stage, result)
}

func (p *ProgressController) advance(ctx context.Context, stage Stage, result StageResult) (ProgressState, error) {
	if stage != p.state.CurrentStage {
		return ProgressState{}, NewOutOfOrderError(stage, p.state.CurrentStage)
	}
	next := cloneProgressState(p.state)
	if result.Contract != nil {
		contract := *result.Contract
		next.Data.Contract = &contract
	}
	if result.TokenType != nil {
		tokenType := *result.TokenType
		next.Data.TokenType = &tokenType
	}
	next.CurrentStage = stage + 1
	if next.CurrentStage > LastStage {
		next.CurrentStage = LastStage
	}
	if next.CurrentStage > next.HighestStageReached {
		next.HighestStageReached = next.CurrentStage
	}
	if err := p.commit(ctx, next); err != nil {
		return ProgressState{}, err
	}
	return cloneProgressState(next), nil
}

// Reset returns to the first stage with no data. The ledger is not touched.
func (p *ProgressController) Reset(ctx context.Context) (ProgressState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := InitialProgressState()
	if err := p.commit(ctx, next); err != nil {
		return ProgressState{}, err
	}
	p.lease = ""
	return cloneProgressState(next), nil
}

// commit persists next and swaps it in. Callers hold p.mu.
func (p *ProgressController) commit(ctx context.Context, next ProgressState) error {
	next.UpdatedAt = p.now()
	if p.store != nil {
		if err := p.store.Save(ctx, next); err != nil {
			return err
		}
	}
	p.state = next
	return nil
}

func (p *ProgressController) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// missingPrerequisite names the first stage data field stage cannot run
// without, or returns "".
func missingPrerequisite(data StageData, stage Stage) string {
	if stage <= StageDeploy {
		return ""
	}
	if data.Contract == nil || strings.TrimSpace(data.Contract.Address) == "" {
		return "contract.address"
	}
	if strings.TrimSpace(data.Contract.Chain) == "" {
		return "contract.chain"
	}
	if stage == StageTokenType {
		return ""
	}
	if data.TokenType == nil || data.TokenType.TokenTypeID <= 0 {
		return "tokenType.id"
	}
	return ""
}

func normalizeProgressState(state ProgressState) ProgressState {
	if !state.CurrentStage.Valid() {
		state.CurrentStage = FirstStage
	}
	if !state.HighestStageReached.Valid() || state.HighestStageReached < state.CurrentStage {
		state.HighestStageReached = state.CurrentStage
	}
	return state
}

func cloneProgressState(in ProgressState) ProgressState {
	out := in
	if in.Data.Contract != nil {
		contract := *in.Data.Contract
		out.Data.Contract = &contract
	}
	if in.Data.TokenType != nil {
		tokenType := *in.Data.TokenType
		out.Data.TokenType = &tokenType
	}
	return out
}
