// Package executor defines the pluggable side-effect boundary that Call
// and Run task handlers dispatch into: HTTP calls, subprocess spawns, and
// any other outbound protocol or code runtime. Adding a new runtime means
// registering a new Executor under a new protocol name; the kinds package
// that drives Call/Run does not otherwise change.
package executor

import "context"

type (
	// Context is the read-only view of workflow state an executor may
	// inspect for diagnostic purposes. Executors must not mutate the
	// values reachable from it.
	Context struct {
		InstanceID   string
		Data         map[string]any
		InitialInput map[string]any
	}

	// Streamer is an optional line-oriented sink for real-time stdout/
	// stderr, tagged by task name. Executors that don't produce streaming
	// output may ignore it.
	Streamer interface {
		WriteLine(taskName, stream, line string)
	}

	// Executor is a capability with a single operation: execute params
	// (already fully evaluated, no expressions remain) under the given
	// task name and context, optionally streaming progress.
	Executor interface {
		Exec(ctx context.Context, taskName string, params any, wctx Context, streamer Streamer) (any, error)
	}

	// Func adapts a plain function to the Executor interface.
	Func func(ctx context.Context, taskName string, params any, wctx Context, streamer Streamer) (any, error)
)

// Exec implements Executor.
func (f Func) Exec(ctx context.Context, taskName string, params any, wctx Context, streamer Streamer) (any, error) {
	return f(ctx, taskName, params, wctx, streamer)
}

// Registry resolves protocol names to executors, consulted by the Call
// handler after the use.functions and catalog lookups have both missed.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds name (e.g. "http", "shell", "grpc") to an Executor.
func (r *Registry) Register(name string, e Executor) {
	r.executors[name] = e
}

// Lookup returns the executor registered under name, if any.
func (r *Registry) Lookup(name string) (Executor, bool) {
	e, ok := r.executors[name]
	return e, ok
}
