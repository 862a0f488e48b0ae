package dispatch

import (
	"context"
	"fmt"

	"github.com/durableflow/engine/checkpoint"
	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/graph"
	"github.com/durableflow/engine/kinds"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/runlog"
	"github.com/durableflow/engine/workflow"
)

// walk drives g from its first vertex to a terminal edge ("end", "exit",
// or no outgoing edge), applying the common-field pipeline around every
// kind-specific handler call. checkpoints gates whether a checkpoint is
// saved after each completed task: true for the top-level instance walk,
// false for nested Do/For/Fork/Try sub-sequence walks, which have no
// independent instance identity to checkpoint against.
func (d *Dispatcher) walk(ctx context.Context, ec *execctx.Context, g *graph.Graph, scope string, use workflow.Use, checkpoints bool) (any, error) {
	return d.walkFrom(ctx, ec, g, g.First(), 0, scope, use, checkpoints)
}

// walkFrom is walk's general form: it starts at an arbitrary vertex with an
// arbitrary starting index, so Resume can splice execution back in partway
// through a graph instead of always starting at g.First().
func (d *Dispatcher) walkFrom(ctx context.Context, ec *execctx.Context, g *graph.Graph, v *graph.Vertex, index int, scope string, use workflow.Use, checkpoints bool) (any, error) {
	var last any

	for v != nil {
		ec.CurrentTask = v.Name

		out, next, err := d.runTask(ctx, ec, v, scope, index, use)
		if err != nil {
			d.appendEvent(ctx, ec.InstanceID, runlog.TaskFaulted, runlog.TaskFaultedPayload{
				TaskName: v.Name,
				Problem:  problem.Wrap(err, problem.KindInternal, problem.InstancePointer(scope, index, v.Name)),
			})
			return nil, err
		}
		last = out

		// CurrentTask records the resume point, not the task just completed:
		// a finished Switch has no static graph edge of its own, so only the
		// resolved next-task name (already accounting for NextOverride) tells
		// replay where to pick back up. A terminal transition means there is
		// nothing left to resume, so WorkflowCompleted/WorkflowFailed in the
		// event log becomes the authority instead of an extra checkpoint.
		if checkpoints && next != "" && !workflow.IsControlDirective(next) {
			if saveErr := d.checkpoint.Save(ctx, &checkpoint.Checkpoint{
				InstanceID:  ec.InstanceID,
				CurrentTask: next,
				Data:        ec.Data,
			}); saveErr != nil {
				d.logger.Error(ctx, "dispatch: checkpoint save failed",
					"instance_id", ec.InstanceID, "task", v.Name, "error", saveErr.Error())
			}
		}

		if next == "" || workflow.IsControlDirective(next) {
			break
		}
		nextVertex, ok := g.Lookup(next)
		if !ok {
			return nil, fmt.Errorf("dispatch: task %q transitions to unknown task %q", v.Name, next)
		}
		v = nextVertex
		index++
	}

	return last, nil
}

// runTask applies the per-task common-field pipeline around a single
// kind-specific handler invocation: if-gate, input filter, dispatch,
// output filter, export rule, and next-task selection, per spec §4.2.
func (d *Dispatcher) runTask(ctx context.Context, ec *execctx.Context, v *graph.Vertex, scope string, index int, use workflow.Use) (any, string, error) {
	common := v.Task.Common()
	root := ec.WithDescriptors()
	vars := ec.Vars()

	if common.If != "" {
		cond, err := d.expr.Eval(ctx, common.If, root, vars)
		if err != nil {
			return nil, "", err
		}
		if !truthy(cond) {
			return ec.TaskInput, firstNonEmpty(common.Then, v.Next), nil
		}
	}

	taskInput := any(root)
	if common.InputFrom != "" {
		filtered, err := d.expr.Eval(ctx, common.InputFrom, root, vars)
		if err != nil {
			return nil, "", err
		}
		taskInput = filtered
	}
	ec.TaskInput = taskInput

	d.appendEvent(ctx, ec.InstanceID, runlog.TaskEntered, runlog.TaskEnteredPayload{
		TaskName: v.Name, Kind: string(v.Task.Kind()),
	})

	result, err := kinds.Dispatch(ctx, d.deps(use), ec, v.Task, scope, index, v.Name)
	if err != nil {
		return nil, "", err
	}

	// The output filter's $input is the handler's raw, pre-filter result.
	ec.TaskInput = result.Value
	out := result.Value
	if common.OutputAs != "" {
		filtered, err := d.expr.Eval(ctx, common.OutputAs, ec.WithDescriptors(), ec.Vars())
		if err != nil {
			return nil, "", err
		}
		out = filtered
	}

	if isScalar(out) {
		ec.ScalarOutputTasks[v.Name] = true
	} else {
		delete(ec.ScalarOutputTasks, v.Name)
	}

	if err := d.applyExport(ctx, ec, v, common, out); err != nil {
		return nil, "", err
	}

	next := result.NextOverride
	if next == "" {
		next = firstNonEmpty(common.Then, v.Next)
	}

	d.appendEvent(ctx, ec.InstanceID, runlog.TaskCompleted, runlog.TaskCompletedPayload{
		TaskName: v.Name, Result: out, Next: next,
	})

	return out, next, nil
}

// applyExport implements the replace-or-merge-by-kind rule from §4.2/§4.3,
// mirroring the original engine's per-kind match (original_source's
// durableengine.rs:365-421):
//
//   - an explicit export.as always wins and replaces context wholesale.
//   - Set, Emit, Do, For, and Switch have already produced their effect on
//     context directly (Set/Emit write through their own handler, Do/For/
//     Switch's nested walk already exported each inner task's result as it
//     completed), so the default path is a no-op for them — merging their
//     outer "result" again would just re-apply stale nested output.
//   - Call and Run-workflow spread an object-shaped result across the
//     root, or — if the result is a scalar/array — land it under the
//     task's own name, so it is never silently discarded.
//   - Fork and Run-script/shell/container (and every other kind) always
//     nest their result under the task's own name, whether it is a map or
//     not, since the whole point of naming them is to keep side-by-side
//     results (e.g. two shell runs' stdout/stderr/exit_code) from
//     colliding in a shared root namespace.
func (d *Dispatcher) applyExport(ctx context.Context, ec *execctx.Context, v *graph.Vertex, common *workflow.Common, out any) error {
	if common.ExportAs != "" {
		replaced, err := d.expr.Eval(ctx, common.ExportAs, ec.WithDescriptors(), ec.Vars())
		if err != nil {
			return err
		}
		if m, ok := replaced.(map[string]any); ok {
			ec.Data = m
		} else {
			ec.Data = map[string]any{v.Name: replaced}
			ec.MarkWritten(v.Name)
		}
		ec.DataModified = true
		return nil
	}

	switch v.Task.Kind() {
	case workflow.KindSet, workflow.KindEmit, workflow.KindDo, workflow.KindFor, workflow.KindSwitch:
		return nil
	case workflow.KindCall:
		return d.mergeSpreadOrNamed(ec, v.Name, out)
	case workflow.KindRun:
		if rt, ok := v.Task.(*workflow.RunTask); ok && rt.Which == workflow.RunWorkflow {
			return d.mergeSpreadOrNamed(ec, v.Name, out)
		}
		return d.mergeUnderName(ec, v.Name, out)
	default:
		return d.mergeUnderName(ec, v.Name, out)
	}
}

// mergeSpreadOrNamed spreads an object-shaped result's keys across the
// root, or stores a non-object result under name, so a scalar result is
// never silently discarded.
func (d *Dispatcher) mergeSpreadOrNamed(ec *execctx.Context, name string, out any) error {
	if m, ok := out.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k, v := range m {
			ec.Data[k] = v
			keys = append(keys, k)
		}
		ec.MarkWritten(keys...)
		return nil
	}
	return d.mergeUnderName(ec, name, out)
}

// mergeUnderName always nests result under name, regardless of shape.
func (d *Dispatcher) mergeUnderName(ec *execctx.Context, name string, out any) error {
	ec.Data[name] = out
	ec.MarkWritten(name)
	return nil
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
