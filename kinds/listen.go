package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleListen implements §4.4/§4.7 Listen: it blocks on deps.Listener for
// one inbound message addressed to t.To, shapes it per t.Read, merges it
// into context the same way a Call result merges by default, runs t.Do as
// a nested sub-sequence, and replies to the waiting transport with Do's
// result before returning it as the task's own output.
//
// Without a Listener dependency wired (an engine running with no listener
// subsystem started) Listen degenerates to the no-op it used to always be:
// there is nothing to await, so it immediately "completes" with an empty
// result, which keeps document validation and graphs that declare a Listen
// task usable in tests that never start a real endpoint.
func handleListen(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.ListenTask, taskName string) (Result, error) {
	if deps.Listener == nil {
		return Result{Value: map[string]any{}}, nil
	}

	msg, err := deps.Listener.Await(ctx, t.To, t.Read)
	if err != nil {
		return Result{}, err
	}

	keys := make([]string, 0, len(msg.Data))
	for k, v := range msg.Data {
		ec.Data[k] = v
		keys = append(keys, k)
	}
	ec.MarkWritten(keys...)
	ec.TaskInput = msg.Data

	out, err := deps.Runner.RunSequence(ctx, ec, t.Do, taskName)
	if msg.Respond != nil {
		msg.Respond(out, err)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Value: out}, nil
}
