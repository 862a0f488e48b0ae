package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleWait implements §4.4 Wait: sleep for the parsed duration, then
// return an empty object. Sleeping goes through deps.Runner.Sleep so a
// Temporal-backed dispatcher can use a durable timer instead of blocking a
// goroutine.
func handleWait(ctx context.Context, deps Deps, _ *execctx.Context, t *workflow.WaitTask) (Result, error) {
	if err := deps.Runner.Sleep(ctx, t.Duration.AsTimeDuration()); err != nil {
		return Result{}, err
	}
	return Result{Value: map[string]any{}}, nil
}
