// Package dispatch implements the kernel main loop (C6): the walk from one
// graph vertex to the next, wrapping each task-kind handler in the common
// field pipeline (input filter, if-gate, output filter, export rule,
// checkpoint write, next-task selection) described in spec §4.2/§4.3.
//
// Dispatcher implements kinds.Runner, so handlers that need to recurse
// (Do/For/Fork/Try bodies), run a nested workflow to completion
// (Run.workflow), or sleep durably (Wait) call back into the same
// Dispatcher that invoked them, without kinds ever importing this package.
//
// Grounded on the teacher's engine/temporal workflow-execution loop shape
// (register once, run many instances against shared stores) and on
// runtime/agent/run.Context's single mutable per-run state object, carried
// over here as execctx.Context.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/durableflow/engine/cache"
	"github.com/durableflow/engine/checkpoint"
	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/expr"
	"github.com/durableflow/engine/graph"
	"github.com/durableflow/engine/kinds"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/runlog"
	"github.com/durableflow/engine/telemetry"
	"github.com/durableflow/engine/workflow"
)

// RuntimeName and RuntimeVersion identify this engine in the __runtime
// descriptor injected into every evaluation.
const (
	RuntimeName    = "durableflow"
	RuntimeVersion = "0.1.0"
)

// Options configures a Dispatcher.
type Options struct {
	Expr       expr.Evaluator
	RunLog     runlog.Store
	Checkpoint checkpoint.Store
	Cache      cache.Store
	Executors  *executor.Registry
	Workflows  kinds.WorkflowResolver
	Streamer   executor.Streamer
	Listener   kinds.ListenAwaiter

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Dispatcher is the kernel: it owns no per-instance state itself (that
// lives in execctx.Context and the Store implementations) and is safe to
// reuse across concurrently executing instances.
type Dispatcher struct {
	expr       expr.Evaluator
	runlog     runlog.Store
	checkpoint checkpoint.Store
	cache      cache.Store
	executors  *executor.Registry
	workflows  kinds.WorkflowResolver
	streamer   executor.Streamer
	listener   kinds.ListenAwaiter

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// New constructs a Dispatcher. Expr, RunLog, Checkpoint, and Cache are
// required. Executors defaults to an empty registry and Logger, Metrics,
// and Tracer to no-op implementations; Workflows, Streamer, and Listener
// may be left nil.
func New(opts Options) (*Dispatcher, error) {
	if opts.Expr == nil {
		return nil, fmt.Errorf("dispatch: Expr evaluator is required")
	}
	if opts.RunLog == nil {
		return nil, fmt.Errorf("dispatch: RunLog store is required")
	}
	if opts.Checkpoint == nil {
		return nil, fmt.Errorf("dispatch: Checkpoint store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("dispatch: Cache store is required")
	}
	if opts.Executors == nil {
		opts.Executors = executor.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNoopTracer()
	}
	return &Dispatcher{
		expr:       opts.Expr,
		runlog:     opts.RunLog,
		checkpoint: opts.Checkpoint,
		cache:      opts.Cache,
		executors:  opts.Executors,
		workflows:  opts.Workflows,
		streamer:   opts.Streamer,
		listener:   opts.Listener,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
	}, nil
}

// deps bundles the Dispatcher's collaborators into the kinds.Deps shape
// handlers expect, scoped to the document whose Use section is in effect.
func (d *Dispatcher) deps(use workflow.Use) kinds.Deps {
	return kinds.Deps{
		Expr:      d.expr,
		Cache:     d.cache,
		Executors: d.executors,
		Workflows: d.workflows,
		Runner:    d,
		Streamer:  d.streamer,
		Listener:  d.listener,
		Use:       use,
	}
}

// Execute runs doc to completion from a fresh execctx.Context seeded with
// input, appending lifecycle events and a checkpoint after every
// completed task (I1/I3). It is the top-level entry point: the instance
// boundary where checkpointing and durable events apply, as opposed to
// RunSequence's nested, non-checkpointed sub-sequence walks.
func (d *Dispatcher) Execute(ctx context.Context, instanceID string, doc workflow.Document, input map[string]any) (any, error) {
	ctx, span := d.tracer.Start(ctx, "workflow.execute")
	defer span.End()
	started := time.Now()
	tags := []string{"workflow", doc.FullName()}

	ec := execctx.New(instanceID, doc, input, RuntimeName, RuntimeVersion)

	d.appendEvent(ctx, instanceID, runlog.WorkflowStarted, runlog.WorkflowStartedPayload{
		Namespace: doc.Namespace, Name: doc.Name, Version: doc.Version, Input: input,
	})

	// A zero-task Do is a valid document per §8's boundary behaviors: it
	// completes immediately with the initial input as output, rather than
	// reaching graph.Build's "no tasks" validation error, which exists for
	// a non-empty Do whose edges can't be resolved, not this case.
	if len(doc.Do) == 0 {
		return d.finish(ctx, ec, span, tags, started, ec.Data, nil)
	}

	g, err := graph.Build(doc)
	if err != nil {
		return nil, err
	}

	out, err := d.walk(ctx, ec, g, "do", doc.Use, true)
	return d.finish(ctx, ec, span, tags, started, out, err)
}

// finish applies the shared completion bookkeeping (terminal cleanup,
// WorkflowCompleted/WorkflowFailed event, span/metric recording) for both a
// fresh Execute run and a spliced-back-in Resume run.
func (d *Dispatcher) finish(ctx context.Context, ec *execctx.Context, span telemetry.Span, tags []string, started time.Time, out any, err error) (any, error) {
	if err != nil {
		p := problem.Wrap(err, problem.KindInternal, "/do")
		d.appendEvent(ctx, ec.InstanceID, runlog.WorkflowFailed, runlog.WorkflowFailedPayload{Problem: p})
		span.RecordError(p)
		d.metrics.IncCounter("durableflow_workflow_failed_total", 1, tags...)
		d.metrics.RecordTimer("durableflow_workflow_duration_seconds", time.Since(started), tags...)
		return nil, p
	}

	final := ec.Cleanup(ec.CurrentTask)
	if final == nil {
		final = out
	}
	d.appendEvent(ctx, ec.InstanceID, runlog.WorkflowCompleted, runlog.WorkflowCompletedPayload{Output: final})
	d.metrics.IncCounter("durableflow_workflow_completed_total", 1, tags...)
	d.metrics.RecordTimer("durableflow_workflow_duration_seconds", time.Since(started), tags...)
	return final, nil
}

// RunWorkflow implements kinds.Runner for Run.workflow: it executes doc
// to completion on a synthetic instance ID built from the resolved
// document's full name and the current time, so nested runs don't collide
// in the event log or checkpoint store with their parent.
func (d *Dispatcher) RunWorkflow(ctx context.Context, doc *workflow.Document, input map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("dispatch: RunWorkflow requires a resolved document")
	}
	childID := fmt.Sprintf("%s/run/%d", doc.FullName(), time.Now().UnixNano())
	out, err := d.Execute(ctx, childID, *doc, input)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{"result": out}
	}
	return m, nil
}

// RunSequence implements kinds.Runner for Do/For/Fork/Try bodies: it
// compiles entries into a self-contained graph (then targets inside a
// sub-sequence resolve only against siblings within it, never the
// enclosing scope) and walks it without checkpointing, since the
// sub-sequence has no independent instance identity.
func (d *Dispatcher) RunSequence(ctx context.Context, ec *execctx.Context, entries []workflow.Entry, scope string) (any, error) {
	if len(entries) == 0 {
		return map[string]any{}, nil
	}
	g, err := graph.Build(workflow.Document{Do: entries})
	if err != nil {
		return nil, err
	}
	return d.walk(ctx, ec, g, scope, workflow.Use{}, false)
}

// Sleep implements kinds.Runner for Wait: it blocks for d or until ctx is
// cancelled. A Temporal-backed dispatch variant would instead start a
// durable timer; this in-process implementation is correct for the
// in-memory engine and for tests.
func (d *Dispatcher) Sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) appendEvent(ctx context.Context, instanceID string, typ runlog.EventType, payload any) {
	err := d.runlog.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       typ,
		Payload:    runlog.Marshal(payload),
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error(ctx, "dispatch: failed to append event", "instance_id", instanceID, "type", string(typ), "error", err.Error())
	}
}

var _ kinds.Runner = (*Dispatcher)(nil)
