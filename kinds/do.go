package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleDo implements §4.4 Do: run the inline sub-sequence and return its
// last task's result. then targets inside Do resolve against siblings
// within it, which RunSequence enforces by scoping the sequence to
// taskName.
func handleDo(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.DoTask, taskName string) (Result, error) {
	out, err := deps.Runner.RunSequence(ctx, ec, t.Do, taskName)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: out}, nil
}
