package kinds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/durableflow/engine/cache"
	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/httpexec"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// handleCall implements §4.4 Call: evaluate `with`, compute the idempotent
// cache key (§4.6) over the evaluated parameters, and on miss resolve
// Function in order against use.functions, a "name:version" catalog
// reference, and finally a built-in protocol name in the executor
// registry.
func handleCall(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.CallTask, scope string, index int, taskName string) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()
	instance := problem.InstancePointer(scope, index, taskName)

	evaluated, err := evalTree(ctx, deps.Expr, t.With, root, vars)
	if err != nil {
		return Result{}, err
	}
	params, _ := evaluated.(map[string]any)

	key, err := cache.Key(taskName, params)
	if err != nil {
		return Result{}, problem.New(problem.KindInternal, 500, "failed to compute cache key", err.Error(), instance)
	}

	if hit, getErr := deps.Cache.Get(ctx, key); getErr == nil {
		return Result{Value: hit.Output}, nil
	} else if !errors.Is(getErr, cache.ErrNotFound) {
		return Result{}, problem.New(problem.KindInternal, 500, "cache lookup failed", getErr.Error(), instance)
	}

	out, err := resolveAndExecuteCall(ctx, deps, ec, t.Function, params, taskName, instance)
	if err != nil {
		return Result{}, err
	}

	if err := deps.Cache.Set(ctx, &cache.Entry{Key: key, Inputs: params, Output: out}); err != nil {
		return Result{}, problem.New(problem.KindInternal, 500, "cache write failed", err.Error(), instance)
	}
	return Result{Value: out}, nil
}

// resolveAndExecuteCall implements the three-step function resolution
// order from §4.4: use.functions, then catalog "name:version", then a
// built-in protocol executor.
func resolveAndExecuteCall(ctx context.Context, deps Deps, ec *execctx.Context, function string, params map[string]any, taskName, instance string) (any, error) {
	if entry, ok := deps.Use.Functions[function]; ok {
		return deps.Runner.RunSequence(ctx, ec, []workflow.Entry{entry}, taskName)
	}

	if name, version, ok := splitCatalogRef(function); ok && len(deps.Use.Catalog) > 0 {
		return callCatalog(ctx, deps, deps.Use.Catalog[0], name, version, params, taskName)
	}

	exec, ok := deps.Executors.Lookup(function)
	if !ok {
		return nil, problem.New(problem.KindConfiguration, 500, "unresolvable call function",
			fmt.Sprintf("%q matches no use.functions entry, catalog reference, or built-in protocol", function), instance)
	}
	wctx := executor.Context{InstanceID: ec.InstanceID, Data: ec.Data, InitialInput: ec.InitialInput}
	return exec.Exec(ctx, taskName, params, wctx, deps.Streamer)
}

// splitCatalogRef reports whether function has the "name:version" shape a
// catalog reference uses.
func splitCatalogRef(function string) (name, version string, ok bool) {
	idx := strings.IndexByte(function, ':')
	if idx <= 0 || idx == len(function)-1 {
		return "", "", false
	}
	return function[:idx], function[idx+1:], true
}

// callCatalog dispatches a catalog-resolved function call through the
// "http" executor: catalog endpoints are remote function-execution
// services addressed by namespace/name/version path segments.
func callCatalog(ctx context.Context, deps Deps, ep workflow.CatalogEndpoint, name, version string, params map[string]any, taskName string) (any, error) {
	httpExec, ok := deps.Executors.Lookup("http")
	if !ok {
		return nil, problem.New(problem.KindConfiguration, 500, "catalog call requires an http executor",
			fmt.Sprintf("no executor registered for protocol %q", "http"), taskName)
	}
	reqParams := httpexec.Params{
		Method: "POST",
		URL:    strings.TrimRight(ep.Endpoint, "/") + "/" + name + "/" + version,
		Body:   params,
	}
	return httpExec.Exec(ctx, taskName, reqParams, executor.Context{}, deps.Streamer)
}
