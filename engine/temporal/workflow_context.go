// This file defines the Temporal-backed implementation of
// engine.WorkflowContext, adapted from the teacher's
// runtime/agent/engine/temporal/workflow_context.go. The teacher's version
// exposed agent-specific methods (ExecutePlannerActivity, PublishHook,
// PauseRequests, ...); those are dropped here in favor of the single
// generic ExecuteActivity/ExecuteActivityAsync/SignalChannel surface the
// new engine.WorkflowContext interface defines. The generic internals
// (futures, receivers, error normalization, retry/activity-option merging)
// carry over almost unchanged.
package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/durableflow/engine/engine"
	"github.com/durableflow/engine/telemetry"
)

type (
	temporalWorkflowContext struct {
		engine     *Engine
		ctx        workflow.Context
		workflowID string
		runID      string
		logger     telemetry.Logger
		metrics    telemetry.Metrics
		tracer     telemetry.Tracer
		baseCtx    context.Context
	}

	contextKey string

	temporalChildHandle struct {
		future workflow.ChildWorkflowFuture
		ctx    workflow.Context
		cancel workflow.CancelFunc
	}

	temporalFuture struct {
		future workflow.Future
		ctx    workflow.Context
	}

	temporalTimerFuture struct {
		future workflow.Future
		ctx    workflow.Context
		fireAt time.Time
	}

	immediateFuture struct {
		v any
	}

	temporalSignalChannel struct {
		ctx workflow.Context
		ch  workflow.ReceiveChannel
	}
)

const (
	workflowIDKey contextKey = "temporal.workflow_id"
	runIDKey      contextKey = "temporal.run_id"
)

// NewWorkflowContext adapts a Temporal workflow.Context into the engine's
// WorkflowContext, for workflows that run in the same Temporal worker but
// are not started through this adapter's RegisterWorkflow path.
func NewWorkflowContext(e *Engine, ctx workflow.Context) engine.WorkflowContext {
	return newTemporalWorkflowContext(e, ctx)
}

func newTemporalWorkflowContext(e *Engine, ctx workflow.Context) *temporalWorkflowContext {
	info := workflow.GetInfo(ctx)
	wfCtx := &temporalWorkflowContext{
		engine:     e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
		logger:     e.logger,
		metrics:    e.metrics,
		tracer:     e.tracer,
		// Workflow execution is distributed and replayed; we cannot rely on
		// a process-local base-context registry to seed child contexts. Build
		// from scratch and rely on Temporal's own propagators for trace
		// context.
		baseCtx: context.Background(),
	}
	e.trackWorkflowContext(wfCtx.runID, wfCtx)
	return wfCtx
}

// normalizeTemporalError translates Temporal cancellation errors to
// context.Canceled so the dispatch kernel classifies cancellation
// uniformly across engine backends.
func normalizeTemporalError(err error) error {
	if err == nil {
		return nil
	}
	if temporal.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

func mergeRetryPolicies(base, override engine.RetryPolicy) engine.RetryPolicy {
	result := base
	if override.MaxAttempts != 0 {
		result.MaxAttempts = override.MaxAttempts
	}
	if override.InitialInterval != 0 {
		result.InitialInterval = override.InitialInterval
	}
	if override.BackoffCoefficient != 0 {
		result.BackoffCoefficient = override.BackoffCoefficient
	}
	return result
}

func convertRetryPolicy(r engine.RetryPolicy) *temporal.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporal.RetryPolicy{}
	if r.MaxAttempts > 0 {
		//nolint:gosec // MaxAttempts is bounded by document validation before reaching here.
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}

func (w *temporalWorkflowContext) Context() context.Context {
	ctx := context.WithValue(w.baseCtx, workflowIDKey, w.workflowID)
	ctx = context.WithValue(ctx, runIDKey, w.runID)
	return engine.WithWorkflowContext(ctx, w)
}

// SetQueryHandler registers a Temporal query handler on the underlying
// workflow context, for run-status and introspection queries the dispatch
// kernel exposes.
func (w *temporalWorkflowContext) SetQueryHandler(name string, handler any) error {
	return workflow.SetQueryHandler(w.ctx, name, handler)
}

func (w *temporalWorkflowContext) WorkflowID() string { return w.workflowID }
func (w *temporalWorkflowContext) RunID() string       { return w.runID }

func (w *temporalWorkflowContext) Logger() telemetry.Logger   { return w.logger }
func (w *temporalWorkflowContext) Metrics() telemetry.Metrics { return w.metrics }
func (w *temporalWorkflowContext) Tracer() telemetry.Tracer   { return w.tracer }

func (w *temporalWorkflowContext) Now() time.Time { return workflow.Now(w.ctx) }

func (w *temporalWorkflowContext) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(ctx, req)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *temporalWorkflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	if req.Name == "" {
		return nil, errors.New("activity name is required")
	}
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req.Name, req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &temporalFuture{future: fut, ctx: actx}, nil
}

func (w *temporalWorkflowContext) SignalChannel(name string) engine.SignalChannel {
	ch := workflow.GetSignalChannel(w.ctx, name)
	return &temporalSignalChannel{ctx: w.ctx, ch: ch}
}

func (w *temporalWorkflowContext) NewTimer(_ context.Context, d time.Duration) (engine.Future, error) {
	now := workflow.Now(w.ctx)
	if d <= 0 {
		return immediateFuture{v: now}, nil
	}
	fireAt := now.Add(d)
	fut := workflow.NewTimer(w.ctx, d)
	return &temporalTimerFuture{future: fut, ctx: w.ctx, fireAt: fireAt}, nil
}

func (w *temporalWorkflowContext) activityOptionsFor(name string, req engine.ActivityRequest) workflow.ActivityOptions {
	defaults := w.engine.activityDefaultsFor(name)

	queue := req.Queue
	if queue == "" {
		queue = defaults.Queue
	}
	if queue == "" {
		queue = w.engine.defaultQueue
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	if timeout == 0 {
		timeout = time.Minute
	}

	retry := mergeRetryPolicies(defaults.RetryPolicy, req.RetryPolicy)

	return workflow.ActivityOptions{
		// Bound both queue wait time and execution time to the effective
		// timeout; without ScheduleToStartTimeout a workflow can block until
		// its run timeout when workers are unavailable.
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              queue,
		RetryPolicy:            convertRetryPolicy(retry),
	}
}

// StartChildWorkflow starts a Temporal child workflow by explicit workflow
// name and task queue, used by the Run.workflow task kind.
func (w *temporalWorkflowContext) StartChildWorkflow(_ context.Context, req engine.WorkflowStartRequest) (engine.ChildWorkflowHandle, error) {
	opts := workflow.ChildWorkflowOptions{
		WorkflowID:         req.ID,
		TaskQueue:          req.TaskQueue,
		WorkflowRunTimeout: req.RunTimeout,
		RetryPolicy:        convertRetryPolicy(req.RetryPolicy),
	}
	cctx := workflow.WithChildOptions(w.ctx, opts)
	cctx, cancel := workflow.WithCancel(cctx)
	fut := workflow.ExecuteChildWorkflow(cctx, req.Workflow, req.Input)
	return &temporalChildHandle{future: fut, ctx: cctx, cancel: cancel}, nil
}

func (h *temporalChildHandle) Get(_ context.Context, result any) error {
	if err := h.future.Get(h.ctx, result); err != nil {
		return normalizeTemporalError(err)
	}
	return nil
}

func (h *temporalChildHandle) Cancel(context.Context) error {
	h.cancel()
	return nil
}

func (f *temporalFuture) Get(_ context.Context, result any) error {
	if err := f.future.Get(f.ctx, result); err != nil {
		return normalizeTemporalError(err)
	}
	return nil
}

func (f *temporalFuture) IsReady() bool { return f.future.IsReady() }

func (f *temporalTimerFuture) Get(_ context.Context, result any) error {
	var ignored struct{}
	if err := f.future.Get(f.ctx, &ignored); err != nil {
		return normalizeTemporalError(err)
	}
	if ptr, ok := result.(*time.Time); ok && ptr != nil {
		*ptr = f.fireAt
	}
	return nil
}

func (f *temporalTimerFuture) IsReady() bool { return f.future.IsReady() }

func (f immediateFuture) Get(ctx context.Context, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ptr, ok := result.(*time.Time); ok && ptr != nil {
		if v, ok := f.v.(time.Time); ok {
			*ptr = v
		}
	}
	return nil
}

func (f immediateFuture) IsReady() bool { return true }

// Receive blocks until a signal value is delivered. Temporal receives
// signals on the workflow context, not the provided ctx; ctx's own
// cancellation is still honored before blocking so callers can enforce
// deadlines deterministically.
func (s *temporalSignalChannel) Receive(ctx context.Context, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ch.Receive(s.ctx, dest)
	return nil
}

// ReceiveAsync attempts to receive a signal value without blocking.
func (s *temporalSignalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}

func (e *Engine) activityDefaultsFor(name string) engine.ActivityOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activityOptions[name]
}
