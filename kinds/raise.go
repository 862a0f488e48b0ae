package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// handleRaise implements §4.4 Raise: build the RFC 7807 error object from
// the inline definition and raise it. The instance field is the
// JSON-pointer-like path to this task.
func handleRaise(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.RaiseTask, scope string, index int, taskName string) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()

	title, err := evalStringField(ctx, deps, t.Title, root, vars)
	if err != nil {
		return Result{}, err
	}
	detail, err := evalStringField(ctx, deps, t.Detail, root, vars)
	if err != nil {
		return Result{}, err
	}
	typ, err := evalStringField(ctx, deps, t.Type, root, vars)
	if err != nil {
		return Result{}, err
	}
	status := t.Status
	if status == 0 {
		status = 500
	}

	p := problem.New(problem.KindInternal, status, title, detail, problem.InstancePointer(scope, index, taskName))
	if typ != "" {
		p.Type = typ
	}
	return Result{}, p
}

func evalStringField(ctx context.Context, deps Deps, field string, root any, vars map[string]any) (string, error) {
	if field == "" {
		return "", nil
	}
	v, err := evalTree(ctx, deps.Expr, field, root, vars)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}
