package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleSwitch implements §4.4 Switch: evaluate cases in order, the first
// truthy When (or the first case with an empty When, acting as a default)
// wins and its Then becomes the next-task override. If nothing matches,
// NextOverride is left empty so the task's own then/implicit edge applies.
func handleSwitch(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.SwitchTask) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()

	for _, c := range t.Cases {
		if c.When == "" {
			return Result{Value: map[string]any{}, NextOverride: c.Then}, nil
		}
		matched, err := evalBare(ctx, deps.Expr, c.When, root, vars)
		if err != nil {
			return Result{}, err
		}
		if truthy(matched) {
			return Result{Value: map[string]any{}, NextOverride: c.Then}, nil
		}
	}
	return Result{Value: map[string]any{}}, nil
}
