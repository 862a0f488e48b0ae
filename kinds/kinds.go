// Package kinds implements the twelve task-kind handlers (C7): Set, Call,
// Do, For, Switch, Fork, Try, Raise, Wait, Run, Emit, Listen. Each handler
// receives the already input-filtered execution context and returns the
// handler's raw result plus an optional next-task override (used by
// Switch); the dispatch package applies the output filter, export rule,
// and merge-by-kind policy described in spec §4.2/§4.3 around these calls.
//
// Grounded on the original engine's durableengine/tasks/*.rs modules (one
// file per task kind) and on the teacher's convention of small, focused
// handler functions operating over a shared dependency bundle rather than
// a God object.
package kinds

import (
	"context"
	"fmt"
	"time"

	"github.com/durableflow/engine/cache"
	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/expr"
	"github.com/durableflow/engine/workflow"
)

type (
	// WorkflowResolver looks up a workflow document by identity, used by
	// Run.workflow.
	WorkflowResolver interface {
		Resolve(ctx context.Context, namespace, name, version string) (*workflow.Document, error)
	}

	// Runner is the callback surface a handler uses to recurse back into
	// the dispatch loop (Do/For/Fork/Try bodies), to run a nested workflow
	// to completion (Run.workflow), and to sleep (Wait). Supplied
	// by the dispatch package, which owns the main loop.
	Runner interface {
		RunSequence(ctx context.Context, ec *execctx.Context, entries []workflow.Entry, scope string) (any, error)
		RunWorkflow(ctx context.Context, doc *workflow.Document, input map[string]any) (map[string]any, error)
		Sleep(ctx context.Context, d time.Duration) error
	}

	// Deps bundles everything a handler needs beyond the task definition
	// and execution context. The dispatch package constructs one Deps per
	// workflow execution, so Use reflects the document currently running
	// (Call's use.functions/catalog resolution is always local to it).
	Deps struct {
		Expr      expr.Evaluator
		Cache     cache.Store
		Executors *executor.Registry
		Workflows WorkflowResolver
		Runner    Runner
		Streamer  executor.Streamer
		Listener  ListenAwaiter
		Use       workflow.Use
	}

	// Result is what a handler returns: the raw value to be output-
	// filtered/merged by the dispatcher, and an optional next-task
	// override (only Switch ever sets this).
	Result struct {
		Value        any
		NextOverride string
	}

	// ListenMessage is one inbound message delivered to a Listen task that
	// was blocked awaiting it. Respond must be called exactly once — the
	// listener subsystem holds the originating transport request open
	// until it is, then uses its arguments to reply.
	ListenMessage struct {
		Data    map[string]any
		Respond func(result any, err error)
	}

	// ListenAwaiter blocks a Listen task until an inbound message arrives
	// for target, or ctx is cancelled. Implemented by listener.Registry;
	// kept as an interface here so kinds never imports the listener
	// package (which imports kinds for ListenMessage, not the reverse).
	ListenAwaiter interface {
		Await(ctx context.Context, target workflow.ListenTarget, mode workflow.ReadMode) (*ListenMessage, error)
	}
)

// Dispatch routes task to its kind-specific handler. taskName and scope
// identify the task for cache keys, error instance pointers, and
// descriptor bookkeeping; index is the task's position within scope for
// RFC 7807 instance pointers.
func Dispatch(ctx context.Context, deps Deps, ec *execctx.Context, task workflow.Task, scope string, index int, taskName string) (Result, error) {
	switch t := task.(type) {
	case *workflow.SetTask:
		return handleSet(ctx, deps, ec, t, taskName)
	case *workflow.CallTask:
		return handleCall(ctx, deps, ec, t, scope, index, taskName)
	case *workflow.DoTask:
		return handleDo(ctx, deps, ec, t, taskName)
	case *workflow.ForTask:
		return handleFor(ctx, deps, ec, t, taskName)
	case *workflow.SwitchTask:
		return handleSwitch(ctx, deps, ec, t)
	case *workflow.ForkTask:
		return handleFork(ctx, deps, ec, t, taskName)
	case *workflow.TryTask:
		return handleTry(ctx, deps, ec, t, scope, index, taskName)
	case *workflow.RaiseTask:
		return handleRaise(ctx, deps, ec, t, scope, index, taskName)
	case *workflow.WaitTask:
		return handleWait(ctx, deps, ec, t)
	case *workflow.RunTask:
		return handleRun(ctx, deps, ec, t, scope, index, taskName)
	case *workflow.EmitTask:
		return handleEmit(ctx, deps, ec, t)
	case *workflow.ListenTask:
		return handleListen(ctx, deps, ec, t, taskName)
	default:
		return Result{}, fmt.Errorf("kinds: unknown task kind %T", task)
	}
}
