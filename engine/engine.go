// Package engine defines the durable-execution backend abstraction (C10's
// dependency): a pluggable interface so the dispatch kernel can run on
// Temporal, a custom engine, or an in-memory adapter without the rest of
// the codebase knowing which. Adapted near-verbatim from the teacher's
// runtime/agent/engine package, which was already domain-agnostic — it
// knows about workflows, activities, signals, and futures, not about
// agents or tools.
package engine

import (
	"context"
	"time"

	"github.com/durableflow/engine/telemetry"
)

type (
	// Engine abstracts workflow registration and execution so adapters
	// (Temporal, in-memory, or custom) can be swapped without touching the
	// dispatch kernel.
	Engine interface {
		// RegisterWorkflow registers a workflow definition. Called during
		// host-process initialization before starting the worker pool.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// RegisterActivity registers an activity definition. Activities are
		// short-lived tasks invoked from workflows — the durableflow facade
		// registers a single activity ("durableflow.execute") that runs a
		// whole workflow document's dispatch, not one per task or protocol.
		RegisterActivity(ctx context.Context, def ActivityDefinition) error

		// StartWorkflow initiates a new workflow execution and returns a
		// handle for interacting with it. req.ID must be unique for the
		// engine instance.
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default queue. The durableflow facade registers its instance handler
	// under a single logical name ("durableflow.instance") shared by every
	// workflow document; the document itself travels as part of the input.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is the durable entry point. It must be deterministic:
	// given the same inputs and activity results, it must retrace the same
	// execution sequence on replay.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to workflow handlers within
	// the deterministic execution environment of a workflow. Implementations
	// must ensure deterministic replay: operations that interact with the
	// workflow engine must produce deterministic results when replayed.
	// Direct I/O, random number generation, or system time access within
	// workflows violates determinism.
	//
	// Thread-safety: bound to a single workflow execution, not shared
	// across goroutines.
	WorkflowContext interface {
		// Context returns the Go context for the workflow; in deterministic
		// engines this is a special replay-aware context.
		Context() context.Context

		WorkflowID() string
		RunID() string

		// ExecuteActivity schedules an activity and waits for its result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error

		// ExecuteActivityAsync schedules an activity without blocking.
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		// SignalChannel returns a channel for the given signal name.
		SignalChannel(name string) SignalChannel

		// NewTimer returns a Future that resolves after d, using the
		// engine's deterministic time source. d<=0 resolves immediately.
		NewTimer(ctx context.Context, d time.Duration) (Future, error)

		// StartChildWorkflow starts a nested workflow execution.
		StartChildWorkflow(ctx context.Context, req WorkflowStartRequest) (ChildWorkflowHandle, error)

		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer

		// Now returns the current workflow time in a deterministic,
		// replay-safe manner.
		Now() time.Time
	}

	// Future represents a pending activity or timer result.
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ChildWorkflowHandle is the Future-like handle for a started child
	// workflow (Run.workflow).
	ChildWorkflowHandle interface {
		Get(ctx context.Context, result any) error
		Cancel(ctx context.Context) error
	}

	// ActivityDefinition registers an activity handler with optional
	// defaults.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles an activity invocation. Unlike workflows,
	// activities may perform side effects.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry and timeout behavior for an
	// activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		ID               string
		Workflow         string
		TaskQueue        string
		Input            any
		Memo             map[string]any
		SearchAttributes map[string]any
		RetryPolicy      RetryPolicy
		RunTimeout       time.Duration
	}

	// ActivityRequest contains the info needed to schedule an activity from
	// a workflow.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle allows callers to interact with a running workflow.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Signal(ctx context.Context, name string, payload any) error
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes workflow signal delivery in an engine-agnostic
	// way.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)

// RunStatus is the lifecycle status an engine reports for a workflow
// execution, used by QueryRunStatus-capable adapters (e.g. engine/inmem).
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)
