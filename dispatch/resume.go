package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/graph"
	"github.com/durableflow/engine/replay"
	"github.com/durableflow/engine/runlog"
	"github.com/durableflow/engine/workflow"
)

func decodePayload(e *runlog.Event, v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Resume continues a previously started instance after a crash (C8, spec
// §4.8). The caller supplies doc (the document's task graph is never
// serialized into the event log, only its identity and input), so Resume
// rebuilds the graph, reloads the last checkpoint, and reconciles it
// against the event log before picking up the walk.
//
// Reconciliation handles the case where the checkpoint is one step behind
// the log (a crash between appending TaskCompleted and saving the
// checkpoint): Resume walks forward through any already-completed tasks by
// replaying their recorded result through the export rule instead of
// re-invoking the handler, so an at-least-once Call with side effects is
// never re-executed.
func (d *Dispatcher) Resume(ctx context.Context, instanceID string, doc workflow.Document) (any, error) {
	ctx, span := d.tracer.Start(ctx, "workflow.resume")
	defer span.End()
	started := time.Now()
	tags := []string{"workflow", doc.FullName()}

	events, err := d.runlog.All(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: resume: loading event log: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("dispatch: resume: instance %q has no event history", instanceID)
	}

	if replay.IsTerminal(events) {
		return d.replayTerminalOutput(events)
	}

	cp, ok, err := d.checkpoint.Load(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: resume: loading checkpoint: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("dispatch: resume: instance %q has no checkpoint to resume from", instanceID)
	}

	wsPayload, ok := replay.FindWorkflowStarted(events)
	if !ok {
		return nil, fmt.Errorf("dispatch: resume: instance %q is missing its WorkflowStarted event", instanceID)
	}
	initialInput, _ := wsPayload.Input.(map[string]any)

	g, err := graph.Build(doc)
	if err != nil {
		return nil, err
	}

	ec := execctx.New(instanceID, doc, initialInput, RuntimeName, RuntimeVersion)
	ec.Data = cp.Data
	if ec.Data == nil {
		ec.Data = map[string]any{}
	}
	// The checkpoint doesn't persist TaskOutputKeys, so mark every key
	// already in the snapshot as task-written: Cleanup's unwritten-initial-
	// input rule can only ever keep too much here, never silently drop
	// progress a completed task made before the crash.
	keys := make([]string, 0, len(ec.Data))
	for k := range ec.Data {
		keys = append(keys, k)
	}
	ec.MarkWritten(keys...)

	completed, err := replay.BuildCompletedTasks(events)
	if err != nil {
		return nil, fmt.Errorf("dispatch: resume: rebuilding completed-task state: %w", err)
	}

	v, ok := g.Lookup(cp.CurrentTask)
	if !ok {
		return nil, fmt.Errorf("dispatch: resume: checkpoint resume point %q is not a task in the supplied document", cp.CurrentTask)
	}

	d.appendEvent(ctx, instanceID, runlog.WorkflowResumed, nil)

	// Splice past any task the log already shows as completed but the
	// checkpoint hasn't caught up to yet.
	index := 0
	for {
		done, ok := completed[v.Name]
		if !ok {
			break
		}
		if err := d.applyExport(ctx, ec, v, v.Task.Common(), done.Result); err != nil {
			return nil, err
		}
		ec.CurrentTask = done.Next
		if done.Next == "" || workflow.IsControlDirective(done.Next) {
			return d.finish(ctx, ec, span, tags, started, done.Result, nil)
		}
		next, ok := g.Lookup(done.Next)
		if !ok {
			return nil, fmt.Errorf("dispatch: resume: completed task %q transitions to unknown task %q", v.Name, done.Next)
		}
		v = next
		index++
	}

	out, err := d.walkFrom(ctx, ec, g, v, index, "do", doc.Use, true)
	return d.finish(ctx, ec, span, tags, started, out, err)
}

// replayTerminalOutput handles the degenerate case where the instance had
// already reached WorkflowCompleted or WorkflowFailed before the crash: the
// checkpoint may be stale or absent entirely, but the log already holds the
// final answer, so Resume just returns it instead of re-walking anything.
func (d *Dispatcher) replayTerminalOutput(events []*runlog.Event) (any, error) {
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		switch e.Type {
		case runlog.WorkflowCompleted:
			var p runlog.WorkflowCompletedPayload
			if err := decodePayload(e, &p); err != nil {
				return nil, err
			}
			return p.Output, nil
		case runlog.WorkflowFailed:
			var p runlog.WorkflowFailedPayload
			if err := decodePayload(e, &p); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("dispatch: resume: instance already failed: %v", p.Problem)
		}
	}
	return nil, fmt.Errorf("dispatch: resume: replay.IsTerminal reported terminal but no terminal event was found")
}
