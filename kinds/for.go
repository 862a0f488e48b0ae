package kinds

import (
	"fmt"

	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// handleFor implements §4.4 For: evaluate In to an array, run the
// sub-sequence once per element with the element/index loop variables
// bound into context, then strip the loop variables back out so they
// don't leak into sibling tasks.
func handleFor(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.ForTask, taskName string) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()

	items, err := evalBare(ctx, deps.Expr, t.In, root, vars)
	if err != nil {
		return Result{}, err
	}
	arr, ok := items.([]any)
	if !ok {
		return Result{}, problem.New(problem.KindExpression, 500, "for.in must evaluate to an array",
			fmt.Sprintf("got %T", items), taskName)
	}

	eachVar, atVar := t.EachVar(), t.AtVar()
	prevEach, hadEach := ec.Data[eachVar]
	prevAt, hadAt := ec.Data[atVar]

	var last any
	for i, elem := range arr {
		ec.Data[eachVar] = elem
		ec.Data[atVar] = i
		ec.MarkWritten(eachVar, atVar)

		out, err := deps.Runner.RunSequence(ctx, ec, t.Do, taskName)
		if err != nil {
			restoreLoopVars(ec, eachVar, atVar, prevEach, hadEach, prevAt, hadAt)
			return Result{}, err
		}
		last = out
	}

	restoreLoopVars(ec, eachVar, atVar, prevEach, hadEach, prevAt, hadAt)
	return Result{Value: last}, nil
}

func restoreLoopVars(ec *execctx.Context, eachVar, atVar string, prevEach any, hadEach bool, prevAt any, hadAt bool) {
	if hadEach {
		ec.Data[eachVar] = prevEach
	} else {
		delete(ec.Data, eachVar)
	}
	if hadAt {
		ec.Data[atVar] = prevAt
	} else {
		delete(ec.Data, atVar)
	}
}
