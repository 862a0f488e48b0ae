package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleSet implements §4.4 Set: if Value is a map, each entry is
// evaluated ("${...}" strings as expressions, other scalars literal) and
// merged into context; if Value is a bare expression string or other
// scalar literal, evaluate and replace context entirely — a non-object
// result can't become the context document itself (Data is always
// map[string]any), so it is stored under the task's own name instead,
// matching the synthetic-wrapper convention execctx.Context.Data
// documents for this case. Cleanup's terminal unwrap rule then returns
// that bare value instead of the wrapper once this is the last task.
func handleSet(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.SetTask, taskName string) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()

	if m, isMap := t.Value.(map[string]any); isMap {
		evaluated, err := evalTree(ctx, deps.Expr, m, root, vars)
		if err != nil {
			return Result{}, err
		}
		merged := evaluated.(map[string]any)
		keys := make([]string, 0, len(merged))
		for k, v := range merged {
			ec.Data[k] = v
			keys = append(keys, k)
		}
		ec.MarkWritten(keys...)
		return Result{Value: merged}, nil
	}

	s, isString := t.Value.(string)
	if isString {
		evaluated, err := evalBare(ctx, deps.Expr, s, root, vars)
		if err != nil {
			return Result{}, err
		}
		if replacement, ok := evaluated.(map[string]any); ok {
			ec.Data = replacement
		} else {
			ec.Data = map[string]any{taskName: evaluated}
			ec.MarkWritten(taskName)
		}
		ec.DataModified = true
		return Result{Value: evaluated}, nil
	}

	// A literal non-map, non-string value (e.g. a number): treat as a
	// direct context replacement, same as a bare expression's result.
	ec.Data = map[string]any{taskName: t.Value}
	ec.MarkWritten(taskName)
	ec.DataModified = true
	return Result{Value: t.Value}, nil
}
