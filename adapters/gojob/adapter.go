package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/reconcile"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDReconcile = "mintflow.reconcile"

const (
	paramKinds   = "kinds"
	paramSpacing = "spacing"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// DefaultRetryPolicy gives up after five deliveries and caps the backoff at
// one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, MaxDelay: time.Minute, DeadLetterOnMax: true}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ReconcileParams are the parameters of a mintflow.reconcile job. They map
// onto reconcile.WithKinds and reconcile.WithSpacing.
type ReconcileParams struct {
	Kinds   []core.OperationKind
	Spacing time.Duration
}

func (p ReconcileParams) options() []reconcile.Option {
	opts := []reconcile.Option{}
	if len(p.Kinds) > 0 {
		opts = append(opts, reconcile.WithKinds(p.Kinds...))
	}
	if p.Spacing > 0 {
		opts = append(opts, reconcile.WithSpacing(p.Spacing))
	}
	return opts
}

// ReconcileMessage builds the go-job message for a reconciliation pass.
func ReconcileMessage(params ReconcileParams, idempotencyKey string) *job.ExecutionMessage {
	parameters := map[string]any{}
	if len(params.Kinds) > 0 {
		kinds := make([]string, 0, len(params.Kinds))
		for _, kind := range params.Kinds {
			kinds = append(kinds, string(kind))
		}
		parameters[paramKinds] = kinds
	}
	if params.Spacing > 0 {
		parameters[paramSpacing] = params.Spacing.String()
	}
	return &job.ExecutionMessage{
		JobID:          JobIDReconcile,
		ScriptPath:     JobIDReconcile,
		Parameters:     parameters,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}
}

// ParseReconcileParams reads the job parameters back. Kinds may be a list or
// a comma separated string; spacing may be a duration string, a
// time.Duration or a number of milliseconds.
func ParseReconcileParams(msg *job.ExecutionMessage) (ReconcileParams, error) {
	if msg == nil {
		return ReconcileParams{}, fmt.Errorf("gojob: execution message is required")
	}
	if jobID := strings.TrimSpace(msg.JobID); jobID != JobIDReconcile {
		return ReconcileParams{}, fmt.Errorf("gojob: unsupported job %q", jobID)
	}
	params := ReconcileParams{}
	kinds, err := parseKinds(msg.Parameters[paramKinds])
	if err != nil {
		return ReconcileParams{}, err
	}
	params.Kinds = kinds
	spacing, err := parseSpacing(msg.Parameters[paramSpacing])
	if err != nil {
		return ReconcileParams{}, err
	}
	params.Spacing = spacing
	return params, nil
}

func parseKinds(raw any) ([]core.OperationKind, error) {
	var values []string
	switch typed := raw.(type) {
	case nil:
		return nil, nil
	case string:
		values = strings.Split(typed, ",")
	case []string:
		values = typed
	case []core.OperationKind:
		for _, kind := range typed {
			values = append(values, string(kind))
		}
	case []any:
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("gojob: kinds must be strings, got %T", item)
			}
			values = append(values, text)
		}
	default:
		return nil, fmt.Errorf("gojob: unsupported kinds parameter %T", raw)
	}
	kinds := make([]core.OperationKind, 0, len(values))
	for _, value := range values {
		value = strings.ToUpper(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		kind := core.OperationKind(value)
		if !kind.Valid() {
			return nil, fmt.Errorf("gojob: unknown operation kind %q", value)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func parseSpacing(raw any) (time.Duration, error) {
	var spacing time.Duration
	switch typed := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		spacing = typed
	case string:
		if strings.TrimSpace(typed) == "" {
			return 0, nil
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(typed))
		if err != nil {
			return 0, fmt.Errorf("gojob: invalid spacing %q: %w", typed, err)
		}
		spacing = parsed
	case int:
		spacing = time.Duration(typed) * time.Millisecond
	case int64:
		spacing = time.Duration(typed) * time.Millisecond
	case float64:
		spacing = time.Duration(typed * float64(time.Millisecond))
	default:
		return 0, fmt.Errorf("gojob: unsupported spacing parameter %T", raw)
	}
	if spacing < 0 {
		return 0, fmt.Errorf("gojob: spacing must not be negative")
	}
	return spacing, nil
}

type ReconcileOption func(*ReconcileJob)

func WithRetryPolicy(policy RetryPolicy) ReconcileOption {
	return func(j *ReconcileJob) {
		j.policy = policy
	}
}

// WithRetryDelay sets the delay requested when a pass is nacked for retry.
func WithRetryDelay(delay time.Duration) ReconcileOption {
	return func(j *ReconcileJob) {
		if delay >= 0 {
			j.retryDelay = delay
		}
	}
}

func WithLogger(logger glog.Logger) ReconcileOption {
	return func(j *ReconcileJob) {
		j.logger = glog.Ensure(logger)
	}
}

// ReconcileJob runs mintflow.reconcile messages against a workflow service.
type ReconcileJob struct {
	target     reconcile.Target
	policy     RetryPolicy
	retryDelay time.Duration
	logger     glog.Logger
}

func NewReconcileJob(target reconcile.Target, opts ...ReconcileOption) (*ReconcileJob, error) {
	if target == nil {
		return nil, fmt.Errorf("gojob: reconcile target is required")
	}
	j := &ReconcileJob{
		target:     target,
		policy:     DefaultRetryPolicy(),
		retryDelay: 10 * time.Second,
		logger:     glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	return j, nil
}

// Run executes one reconciliation pass described by msg.
func (j *ReconcileJob) Run(ctx context.Context, msg *job.ExecutionMessage) (reconcile.Result, error) {
	if j == nil || j.target == nil {
		return reconcile.Result{}, fmt.Errorf("gojob: reconcile job is not configured")
	}
	params, err := ParseReconcileParams(msg)
	if err != nil {
		return reconcile.Result{}, err
	}
	reconciler, err := reconcile.New(j.target, append(params.options(), reconcile.WithLogger(j.logger))...)
	if err != nil {
		return reconcile.Result{}, err
	}
	return reconciler.ReconcilePending(ctx)
}

// Handle runs the delivered message and settles the delivery. A clean pass is
// acked. Recheck errors are nacked for a bounded retry and a malformed
// message goes straight to the dead letter queue.
func (j *ReconcileJob) Handle(ctx context.Context, delivery queue.Delivery, attempt int) (reconcile.Result, error) {
	if delivery == nil {
		return reconcile.Result{}, fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if _, err := ParseReconcileParams(msg); err != nil {
		j.logger.Warn("dropping malformed reconcile job", "attempt", attempt, "error", err.Error())
		if nackErr := delivery.Nack(ctx, j.policy.NormalizeAttempt(queue.NackOptions{DeadLetter: true, Reason: err.Error()}, attempt)); nackErr != nil {
			return reconcile.Result{}, nackErr
		}
		return reconcile.Result{}, err
	}

	result, err := j.Run(ctx, msg)
	if err == nil && len(result.Errors) == 0 {
		return result, delivery.Ack(ctx)
	}
	reason := fmt.Sprintf("%d rechecks failed", len(result.Errors))
	if err != nil {
		reason = err.Error()
	}
	opts := j.policy.NormalizeAttempt(queue.NackOptions{Delay: j.retryDelay, Requeue: true, Reason: reason}, attempt)
	j.logger.Warn("reconcile job nacked",
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"reason", opts.Reason,
	)
	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		return result, nackErr
	}
	return result, err
}

// Consume dequeues one delivery and handles it.
func (j *ReconcileJob) Consume(ctx context.Context, dequeuer queue.Dequeuer, attempt int) (reconcile.Result, error) {
	if dequeuer == nil {
		return reconcile.Result{}, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	return j.Handle(ctx, delivery, attempt)
}

// EnqueueReconcile schedules a reconciliation pass on a go-job queue.
func EnqueueReconcile(ctx context.Context, enqueuer queue.Enqueuer, params ReconcileParams, idempotencyKey string) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return enqueuer.Enqueue(ctx, ReconcileMessage(params, idempotencyKey))
}

// LoggingHook reports go-job worker events for reconcile jobs.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("debug", "reconcile job started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("info", "reconcile job succeeded", event)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("error", "reconcile job failed", event)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("warn", "reconcile job retrying", event)
}

func (h *LoggingHook) log(level string, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	args := eventFields(event)
	switch level {
	case "debug":
		h.logger.Debug(message, args...)
	case "warn":
		h.logger.Warn(message, args...)
	case "error":
		h.logger.Error(message, args...)
	default:
		h.logger.Info(message, args...)
	}
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	args := []any{"attempt", event.Attempt}
	if message != nil {
		args = append(args, "job_id", strings.TrimSpace(message.JobID))
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		args = append(args, "duration", event.Duration.String())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

var _ worker.Hook = (*LoggingHook)(nil)
