package reconcile

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-mintflow/core"
)

// Target is the part of the workflow service a reconciliation pass drives.
type Target interface {
	PendingTransactions() []core.OperationRecord
	Recheck(ctx context.Context, id string) (core.StageOutcome, error)
}

type Option func(*Reconciler)

func WithLogger(logger glog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = glog.Ensure(logger)
	}
}

// WithSpacing waits between two rechecks so a long backlog does not burst
// the remote API.
func WithSpacing(spacing time.Duration) Option {
	return func(r *Reconciler) {
		if spacing > 0 {
			r.spacing = spacing
		}
	}
}

func WithKinds(kinds ...core.OperationKind) Option {
	return func(r *Reconciler) {
		r.kinds = map[core.OperationKind]struct{}{}
		for _, kind := range kinds {
			if kind.Valid() {
				r.kinds[kind] = struct{}{}
			}
		}
	}
}

// Reconciler re-checks ledger records left Pending, typically after a
// restart or a poll timeout.
type Reconciler struct {
	target  Target
	logger  glog.Logger
	spacing time.Duration
	kinds   map[core.OperationKind]struct{}
}

type Result struct {
	Checked      int
	Succeeded    []string
	Failed       []string
	StillPending []string
	Errors       map[string]error
}

func New(target Target, opts ...Option) (*Reconciler, error) {
	if target == nil {
		return nil, fmt.Errorf("reconcile: target is required")
	}
	r := &Reconciler{target: target, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// ReconcilePending rechecks every Pending record once, oldest first, so an
// earlier stage can advance the workflow before a later one is applied. A
// failed recheck is recorded and the pass continues. Only context
// cancellation stops it early.
func (r *Reconciler) ReconcilePending(ctx context.Context) (Result, error) {
	result := Result{Errors: map[string]error{}}
	if r == nil || r.target == nil {
		return result, fmt.Errorf("reconcile: reconciler is not configured")
	}

	pending := r.target.PendingTransactions()
	for i := len(pending) - 1; i >= 0; i-- {
		record := pending[i]
		if !r.selected(record.Kind) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if result.Checked > 0 && r.spacing > 0 {
			timer := time.NewTimer(r.spacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}

		result.Checked++
		outcome, err := r.target.Recheck(ctx, record.ID)
		switch {
		case outcome.Status == core.StatusSucceeded:
			result.Succeeded = append(result.Succeeded, record.ID)
		case outcome.Status == core.StatusFailed || core.IsOperationFailed(err):
			result.Failed = append(result.Failed, record.ID)
		default:
			result.StillPending = append(result.StillPending, record.ID)
		}
		if err != nil && !core.IsOperationFailed(err) {
			result.Errors[record.ID] = err
			r.logger.Warn("reconcile recheck failed", "operation_id", record.ID, "kind", string(record.Kind), "error", err.Error())
			continue
		}
		r.logger.Debug("reconcile recheck", "operation_id", record.ID, "kind", string(record.Kind), "status", string(outcome.Status))
	}

	r.logger.Info("reconcile pass complete",
		"checked", result.Checked,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"pending", len(result.StillPending),
	)
	return result, nil
}

func (r *Reconciler) selected(kind core.OperationKind) bool {
	if len(r.kinds) == 0 {
		return true
	}
	_, ok := r.kinds[kind]
	return ok
}
