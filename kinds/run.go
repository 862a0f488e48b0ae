package kinds

import (
	"context"
	"fmt"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/shellexec"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// handleRun implements §4.4 Run: dispatch to one of the four Run shapes.
// run.container is accepted at the parser level (for forward-compat with
// deployments that add a container executor) but always fails here, since
// this runtime ships no sandboxing layer.
func handleRun(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.RunTask, scope string, index int, taskName string) (Result, error) {
	instance := problem.InstancePointer(scope, index, taskName)

	switch t.Which {
	case workflow.RunWorkflow:
		return runRunWorkflow(ctx, deps, ec, t.Workflow, instance)
	case workflow.RunScript:
		return runRunScript(ctx, deps, ec, t.Script, taskName, instance)
	case workflow.RunShell:
		return runRunShell(ctx, deps, ec, t.Shell, taskName, instance)
	case workflow.RunContainer:
		return Result{}, problem.New(problem.KindConfiguration, 501, "run.container is not supported",
			"container execution is out of scope for this runtime", instance)
	default:
		return Result{}, problem.New(problem.KindConfiguration, 500, "unknown run kind", string(t.Which), instance)
	}
}

func runRunWorkflow(ctx context.Context, deps Deps, ec *execctx.Context, spec *workflow.RunWorkflowSpec, instance string) (Result, error) {
	if spec == nil {
		return Result{}, problem.New(problem.KindConfiguration, 500, "run.workflow missing specification", "", instance)
	}
	root := ec.WithDescriptors()
	vars := ec.Vars()

	evaluated, err := evalTree(ctx, deps.Expr, spec.Input, root, vars)
	if err != nil {
		return Result{}, err
	}
	input, _ := evaluated.(map[string]any)

	doc, err := deps.Workflows.Resolve(ctx, spec.Namespace, spec.Name, spec.Version)
	if err != nil {
		return Result{}, problem.New(problem.KindConfiguration, 404, "run.workflow target not found", err.Error(), instance)
	}

	if !spec.Await {
		bgCtx := context.WithoutCancel(ctx)
		go func() {
			_, _ = deps.Runner.RunWorkflow(bgCtx, doc, input)
		}()
		return Result{Value: map[string]any{}}, nil
	}

	out, err := deps.Runner.RunWorkflow(ctx, doc, input)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: out}, nil
}

func runRunScript(ctx context.Context, deps Deps, ec *execctx.Context, spec *workflow.RunScriptSpec, taskName, instance string) (Result, error) {
	if spec == nil {
		return Result{}, problem.New(problem.KindConfiguration, 500, "run.script missing specification", "", instance)
	}
	exec, ok := deps.Executors.Lookup(spec.Language)
	if !ok {
		return Result{}, problem.New(problem.KindConfiguration, 500, "no code runtime registered",
			fmt.Sprintf("no executor for script language %q", spec.Language), instance)
	}

	root := ec.WithDescriptors()
	vars := ec.Vars()
	evaluated, err := evalTree(ctx, deps.Expr, spec.Arguments, root, vars)
	if err != nil {
		return Result{}, err
	}
	args, _ := evaluated.(map[string]any)

	params := map[string]any{
		"code":      spec.Code,
		"source":    spec.Source,
		"language":  spec.Language,
		"arguments": args,
	}
	wctx := executor.Context{InstanceID: ec.InstanceID, Data: ec.Data, InitialInput: ec.InitialInput}
	out, err := exec.Exec(ctx, taskName, params, wctx, deps.Streamer)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: out}, nil
}

func runRunShell(ctx context.Context, deps Deps, ec *execctx.Context, spec *workflow.RunShellSpec, taskName, instance string) (Result, error) {
	if spec == nil {
		return Result{}, problem.New(problem.KindConfiguration, 500, "run.shell missing specification", "", instance)
	}
	exec, ok := deps.Executors.Lookup("shell")
	if !ok {
		return Result{}, problem.New(problem.KindConfiguration, 500, "no shell executor registered", "", instance)
	}
	params := shellexec.Params{Command: spec.Command, Arguments: spec.Arguments}
	wctx := executor.Context{InstanceID: ec.InstanceID, Data: ec.Data, InitialInput: ec.InitialInput}
	out, err := exec.Exec(ctx, taskName, params, wctx, deps.Streamer)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: out}, nil
}
