package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// handleTry implements §4.4 Try: run the Try sub-sequence; on error,
// normalize it to a Problem and test it against Catch.Errors.With. A match
// binds the normalized error under Catch.AsVar() and runs the recovery
// sub-sequence. With no Catch the error propagates unchanged; a
// non-matching error propagates as its normalized Problem. Either way an
// enclosing Try or the dispatcher's failure path handles it.
func handleTry(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.TryTask, scope string, index int, taskName string) (Result, error) {
	out, err := deps.Runner.RunSequence(ctx, ec, t.Try, taskName)
	if err == nil {
		return Result{Value: out}, nil
	}

	if t.Catch == nil {
		return Result{}, err
	}

	p := problem.Wrap(err, problem.KindExecution, problem.InstancePointer(scope, index, taskName))
	if !p.Matches(t.Catch.Errors.With) {
		return Result{}, p
	}

	asVar := t.Catch.AsVar()
	ec.Data[asVar] = problemPayload(p)
	ec.MarkWritten(asVar)

	recovered, err := deps.Runner.RunSequence(ctx, ec, t.Catch.Do, taskName)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: recovered}, nil
}

// problemPayload renders a Problem the same way it would marshal on the
// wire, for binding into context under the catch variable.
func problemPayload(p *problem.Problem) map[string]any {
	return map[string]any{
		"type":     p.Type,
		"status":   p.Status,
		"title":    p.Title,
		"detail":   p.Detail,
		"instance": p.Instance,
	}
}
