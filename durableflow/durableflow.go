// Package durableflow is the top-level engine facade (C10, spec §4.9): the
// single entry point a host process uses to register workflow documents,
// start and resume instances, and wait for or cancel a running one.
//
// Grounded on the teacher's top-level runtime/agent package, which wraps
// runtime/agent/engine.Engine the same way this package wraps
// engine.Engine here: the facade owns the workflow catalog and the one
// WorkflowDefinition/ActivityDefinition pair every instance runs under,
// while dispatch.Dispatcher owns the actual task-by-task semantics
// (checkpointing, event log, replay) independently of whichever backend
// (Temporal, in-memory) is driving it. A workflow document's full DAG
// walk runs as a single activity on the backend: the backend supplies
// process-level durability (retries, worker distribution, crash
// recovery of the *activity call itself*), while dispatch's own event
// log and checkpoint store supply task-level durability within that
// call, per spec §4.8.
package durableflow

import (
	"context"
	"fmt"

	"github.com/durableflow/engine/catalog"
	"github.com/durableflow/engine/dispatch"
	"github.com/durableflow/engine/engine"
	"github.com/durableflow/engine/telemetry"
	"github.com/durableflow/engine/workflow"
)

const (
	workflowName = "durableflow.instance"
	activityName = "durableflow.execute"
)

// Engine is the facade a host process constructs once and shares across
// every workflow document and instance it runs.
type Engine struct {
	backend    engine.Engine
	dispatcher *dispatch.Dispatcher
	catalog    *catalog.Registry
	logger     telemetry.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the facade's own lifecycle logging. The dispatcher
// passed to New keeps its own logger independently.
func WithLogger(logger telemetry.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New constructs an Engine over backend (engine/inmem.New() or a
// Temporal-backed adapter), dispatcher (the kernel that actually runs a
// document's task graph), and cat, the same catalog.Registry passed as
// dispatch.Options.Workflows so Call/Run.workflow and this facade's own
// Execute/Resume resolve documents identically. It registers the single
// workflow/activity pair every instance executes under; call
// RegisterWorkflow per document before calling Execute or Resume against
// it.
func New(backend engine.Engine, dispatcher *dispatch.Dispatcher, cat *catalog.Registry, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("durableflow: backend engine is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("durableflow: dispatcher is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("durableflow: catalog is required")
	}
	e := &Engine{
		backend:    backend,
		dispatcher: dispatcher,
		catalog:    cat,
		logger:     telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	ctx := context.Background()
	if err := backend.RegisterActivity(ctx, engine.ActivityDefinition{
		Name:    activityName,
		Handler: e.executeActivity,
	}); err != nil {
		return nil, fmt.Errorf("durableflow: registering activity: %w", err)
	}
	if err := backend.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:    workflowName,
		Handler: e.runInstance,
	}); err != nil {
		return nil, fmt.Errorf("durableflow: registering workflow: %w", err)
	}
	return e, nil
}

// RegisterWorkflow adds doc to the catalog Execute and Resume look
// documents up from by (namespace, name, version). It does not itself
// start any instance.
func (e *Engine) RegisterWorkflow(ctx context.Context, doc workflow.Document) error {
	e.catalog.Register(doc)
	e.logger.Info(ctx, "durableflow: workflow registered", "document", doc.FullName())
	return nil
}

// Lookup returns the registered document for the given identity triple.
func (e *Engine) Lookup(namespace, name, version string) (*workflow.Document, bool) {
	return e.catalog.Lookup(namespace, name, version)
}

// Handle is the caller-facing reference to a started instance.
type Handle struct {
	InstanceID string
	backend    engine.WorkflowHandle
}

// WaitForCompletion blocks until the instance referenced by h finishes,
// returning its final output or the *problem.Problem it failed with.
func (h *Handle) WaitForCompletion(ctx context.Context) (any, error) {
	var out any
	err := h.backend.Wait(ctx, &out)
	return out, err
}

// Cancel requests cancellation of the instance referenced by h. Whether
// an in-flight task observes the cancellation before completing depends
// on the backend and on the task kind currently running.
func (h *Handle) Cancel(ctx context.Context) error {
	return h.backend.Cancel(ctx)
}

// executeActivityInput is the payload shape carried from runInstance's
// workflow context to executeActivity. Exported fields only, so a
// backend that serializes activity input (Temporal's data converter)
// round-trips it correctly.
type executeActivityInput struct {
	InstanceID string
	Document   workflow.Document
	Input      map[string]any
}

// runInstance is the single WorkflowFunc every instance, regardless of
// document, executes under. It does no task-graph work itself — that
// would violate the backend's determinism requirement, since Set/Call/
// Switch/etc. evaluation is not replay-safe in general (Call executors
// perform real I/O) — it only schedules executeActivity and returns its
// result, so the backend's replay model only ever needs to remember "one
// activity was scheduled with this input and resolved to this output."
func (e *Engine) runInstance(ctx engine.WorkflowContext, input any) (any, error) {
	in, ok := input.(executeActivityInput)
	if !ok {
		return nil, fmt.Errorf("durableflow: runInstance received unexpected input type %T", input)
	}
	var out any
	err := ctx.ExecuteActivity(ctx.Context(), engine.ActivityRequest{
		Name:  activityName,
		Input: in,
	}, &out)
	return out, err
}

// executeActivity is the one ActivityFunc every instance runs through.
// It is where dispatch.Dispatcher.Execute actually runs the document's
// task graph, since activities (unlike workflow functions) are permitted
// to perform side effects and are not subject to the backend's
// determinism requirement.
func (e *Engine) executeActivity(ctx context.Context, input any) (any, error) {
	in, ok := input.(executeActivityInput)
	if !ok {
		return nil, fmt.Errorf("durableflow: executeActivity received unexpected input type %T", input)
	}
	return e.dispatcher.Execute(ctx, in.InstanceID, in.Document, in.Input)
}

// Execute starts a new instance of the document identified by namespace,
// name, and version, under instanceID (which must be unique for the
// backend). It returns immediately with a Handle; call WaitForCompletion
// to block for the result.
func (e *Engine) Execute(ctx context.Context, instanceID, namespace, name, version string, input map[string]any) (*Handle, error) {
	doc, ok := e.Lookup(namespace, name, version)
	if !ok {
		return nil, fmt.Errorf("durableflow: no workflow registered for %s/%s/%s", namespace, name, version)
	}

	backendHandle, err := e.backend.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       instanceID,
		Workflow: workflowName,
		Input: executeActivityInput{
			InstanceID: instanceID,
			Document:   *doc,
			Input:      input,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("durableflow: starting instance %q: %w", instanceID, err)
	}
	e.logger.Info(ctx, "durableflow: instance started", "instance_id", instanceID, "document", doc.FullName())
	return &Handle{InstanceID: instanceID, backend: backendHandle}, nil
}

// Resume continues instanceID after a crash (spec §4.8), bypassing the
// backend's own scheduling: the event log and checkpoint dispatch.Resume
// reads from are the authoritative record of the instance's progress,
// independent of whether the backend itself retained any state about the
// original StartWorkflow call. Resume runs synchronously and returns the
// instance's final output once it completes.
func (e *Engine) Resume(ctx context.Context, instanceID, namespace, name, version string) (any, error) {
	doc, ok := e.Lookup(namespace, name, version)
	if !ok {
		return nil, fmt.Errorf("durableflow: no workflow registered for %s/%s/%s", namespace, name, version)
	}
	e.logger.Info(ctx, "durableflow: resuming instance", "instance_id", instanceID, "document", doc.FullName())
	return e.dispatcher.Resume(ctx, instanceID, *doc)
}
