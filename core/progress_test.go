package core

import (
	"context"
	"errors"
	"testing"
)

func deployedResult() StageResult {
	return StageResult{Contract: &ContractResult{ID: "deploy-1", Address: "0xabc", Chain: "MATIC"}}
}

func TestProgress_AdvanceMovesOneStageAndCaps(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressController(&memoryProgressStore{})

	state, err := progress.Advance(ctx, StageDeploy, deployedResult())
	if err != nil {
		t.Fatalf("advance deploy: %v", err)
	}
	if state.CurrentStage != StageTokenType || state.HighestStageReached != StageTokenType {
		t.Fatalf("expected stage 2, got %+v", state)
	}
	if state.Data.Contract == nil || state.Data.Contract.Address != "0xabc" {
		t.Fatalf("expected contract data merged")
	}

	state, err = progress.Advance(ctx, StageTokenType, StageResult{TokenType: &TokenTypeResult{TokenTypeID: 3}})
	if err != nil {
		t.Fatalf("advance token type: %v", err)
	}
	state, err = progress.Advance(ctx, StageMint, StageResult{})
	if err != nil {
		t.Fatalf("advance mint: %v", err)
	}
	if state.CurrentStage != StageMint {
		t.Fatalf("expected stage capped at 3, got %d", state.CurrentStage)
	}
}

func TestProgress_DoubleAdvanceIsOutOfOrderWithoutMutation(t *testing.T) {
	ctx := context.Background()
	store := &memoryProgressStore{}
	progress := NewProgressController(store)
	if _, err := progress.Advance(ctx, StageDeploy, deployedResult()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	before := progress.Snapshot()
	saves := store.saves

	_, err := progress.Advance(ctx, StageDeploy, StageResult{Contract: &ContractResult{Address: "0xother", Chain: "BSC"}})
	if !IsOutOfOrderError(err) {
		t.Fatalf("expected out of order error, got %v", err)
	}
	after := progress.Snapshot()
	if after.CurrentStage != before.CurrentStage || after.Data.Contract.Address != "0xabc" {
		t.Fatalf("expected no mutation, got %+v", after)
	}
	if store.saves != saves {
		t.Fatalf("expected no persistence on rejected advance")
	}
}

func TestProgress_CanEnterFollowsStageData(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressController(nil)
	if !progress.CanEnter(StageDeploy) {
		t.Fatalf("expected stage 1 always enterable")
	}
	if progress.CanEnter(StageTokenType) || progress.CanEnter(StageMint) {
		t.Fatalf("expected later stages gated without data")
	}
	if _, err := progress.Advance(ctx, StageDeploy, deployedResult()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !progress.CanEnter(StageTokenType) {
		t.Fatalf("expected stage 2 enterable with contract data")
	}
	if progress.CanEnter(StageMint) {
		t.Fatalf("expected stage 3 gated without token type")
	}
	if _, err := progress.Advance(ctx, StageTokenType, StageResult{TokenType: &TokenTypeResult{TokenTypeID: 1}}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !progress.CanEnter(StageMint) {
		t.Fatalf("expected stage 3 enterable")
	}
}

func TestProgress_BeginChecksPrerequisiteOrderAndBusy(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressController(nil)

	if _, err := progress.Begin(ctx, StageMint); !IsPrerequisiteError(err) {
		t.Fatalf("expected prerequisite error, got %v", err)
	}
	lease, err := progress.Begin(ctx, StageDeploy)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !lease.State.Busy || !progress.Snapshot().Busy {
		t.Fatalf("expected busy while leased")
	}
	if _, err := progress.Begin(ctx, StageDeploy); !IsBusyError(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if err := progress.Release(ctx, lease); err != nil {
		t.Fatalf("release: %v", err)
	}
	if progress.Snapshot().Busy {
		t.Fatalf("expected busy cleared")
	}

	if _, err := progress.Advance(ctx, StageDeploy, deployedResult()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := progress.Begin(ctx, StageDeploy); !IsOutOfOrderError(err) {
		t.Fatalf("expected out of order error, got %v", err)
	}
}

func TestProgress_StaleLeaseDoesNotClearNewerClaim(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressController(nil)
	stale, err := progress.Begin(ctx, StageDeploy)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := progress.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := progress.Begin(ctx, StageDeploy); err != nil {
		t.Fatalf("begin after reset: %v", err)
	}
	if err := progress.Release(ctx, stale); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !progress.Snapshot().Busy {
		t.Fatalf("expected newer claim to stay busy")
	}
}

func TestProgress_ResetAndLoad(t *testing.T) {
	ctx := context.Background()
	store := &memoryProgressStore{}
	progress := NewProgressController(store)
	if _, err := progress.Advance(ctx, StageDeploy, deployedResult()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := progress.SetBusy(ctx, true); err != nil {
		t.Fatalf("set busy: %v", err)
	}

	restored := NewProgressController(store)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := restored.Snapshot()
	if state.CurrentStage != StageTokenType || state.Busy {
		t.Fatalf("expected restored stage 2 and not busy, got %+v", state)
	}

	state, err := restored.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if state.CurrentStage != StageDeploy || state.HighestStageReached != StageDeploy || state.Data.Contract != nil || state.Busy {
		t.Fatalf("expected initial state after reset, got %+v", state)
	}
}

func TestProgress_SaveFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := &memoryProgressStore{saveErr: boom}
	progress := NewProgressController(store)
	if _, err := progress.Advance(ctx, StageDeploy, deployedResult()); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if progress.Snapshot().CurrentStage != StageDeploy {
		t.Fatalf("expected stage unchanged after failed save")
	}
}

func TestProgress_AdvanceWithLeaseRejectsVoidedLease(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressController(&memoryProgressStore{})

	lease, err := progress.Begin(ctx, StageDeploy)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := progress.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if progress.Holds(lease) {
		t.Fatalf("expected reset to void the lease")
	}
	if _, err := progress.AdvanceWithLease(ctx, lease, deployedResult()); !IsStaleLeaseError(err) {
		t.Fatalf("expected stale lease error, got %v", err)
	}
	state := progress.Snapshot()
	if state.CurrentStage != StageDeploy || state.Data.Contract != nil {
		t.Fatalf("expected state untouched, got %+v", state)
	}

	next, err := progress.Begin(ctx, StageDeploy)
	if err != nil {
		t.Fatalf("begin after reset: %v", err)
	}
	state, err = progress.AdvanceWithLease(ctx, next, deployedResult())
	if err != nil {
		t.Fatalf("advance with live lease: %v", err)
	}
	if state.CurrentStage != StageTokenType {
		t.Fatalf("expected stage 2, got %d", state.CurrentStage)
	}
}
