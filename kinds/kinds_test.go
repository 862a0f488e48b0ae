package kinds_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/cache"
	cacheinmem "github.com/durableflow/engine/cache/inmem"
	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/shellexec"
	"github.com/durableflow/engine/expr/gojq"
	"github.com/durableflow/engine/kinds"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/workflow"
)

// fakeRunner executes sub-sequences by dispatching each entry in order
// with no common-field pipeline (input/output filters, export rule,
// checkpointing). Good enough to unit test a single handler's own
// behavior in isolation from the dispatch package's pipeline, which has
// its own end-to-end tests.
type fakeRunner struct {
	deps func() kinds.Deps
}

func (r *fakeRunner) RunSequence(ctx context.Context, ec *execctx.Context, entries []workflow.Entry, scope string) (any, error) {
	var last any
	for i, e := range entries {
		res, err := kinds.Dispatch(ctx, r.deps(), ec, e.Task, scope, i, e.Name)
		if err != nil {
			return nil, err
		}
		last = res.Value
	}
	return last, nil
}

func (r *fakeRunner) RunWorkflow(ctx context.Context, doc *workflow.Document, input map[string]any) (map[string]any, error) {
	ec := execctx.New("nested", *doc, input, "test", "0")
	out, err := r.RunSequence(ctx, ec, doc.Do, "do")
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	return m, nil
}

func (r *fakeRunner) Sleep(ctx context.Context, d time.Duration) error {
	return nil
}

func newDeps(t *testing.T) (kinds.Deps, cache.Store, *executor.Registry) {
	t.Helper()
	store := cacheinmem.New()
	registry := executor.NewRegistry()
	var d kinds.Deps
	runner := &fakeRunner{deps: func() kinds.Deps { return d }}
	d = kinds.Deps{
		Expr:      gojq.New(),
		Cache:     store,
		Executors: registry,
		Runner:    runner,
	}
	return d, store, registry
}

func newCtx(initial map[string]any) *execctx.Context {
	doc := workflow.Document{Namespace: "test", Name: "unit", Version: "v1"}
	return execctx.New("inst-test", doc, initial, "test", "0")
}

func TestSetMergesMapValue(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.SetTask{Value: map[string]any{"greeting": "${ \"hi\" }", "n": 3}}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "assign")
	require.NoError(t, err)
	merged := res.Value.(map[string]any)
	require.Equal(t, "hi", merged["greeting"])
	require.Equal(t, "hi", ec.Data["greeting"])
	require.EqualValues(t, 3, ec.Data["n"])
}

func TestSetReplacesContextWithBareExpression(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(map[string]any{"stale": true})

	task := &workflow.SetTask{Value: "{new: true}"}
	_, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "reset")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"new": true}, ec.Data)
}

func TestSetBareScalarExpressionIsWrappedUnderTaskName(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(map[string]any{"stale": true})

	task := &workflow.SetTask{Value: "1 + 1"}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "count")
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Value)
	require.EqualValues(t, map[string]any{"count": 2}, ec.Data)
}

func TestSetLiteralScalarValueIsWrappedUnderTaskName(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(map[string]any{"stale": true})

	task := &workflow.SetTask{Value: 42}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "answer")
	require.NoError(t, err)
	require.Equal(t, 42, res.Value)
	require.Equal(t, map[string]any{"answer": 42}, ec.Data)
}

func TestCallDispatchesToRegisteredExecutorAndCaches(t *testing.T) {
	deps, store, registry := newDeps(t)
	calls := 0
	registry.Register("echo", executor.Func(func(ctx context.Context, taskName string, params any, wctx executor.Context, streamer executor.Streamer) (any, error) {
		calls++
		return map[string]any{"echoed": params}, nil
	}))

	ec := newCtx(nil)
	task := &workflow.CallTask{Function: "echo", With: map[string]any{"x": 1}}

	res1, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "call-1")
	require.NoError(t, err)
	res2, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "call-1")
	require.NoError(t, err)

	require.Equal(t, 1, calls, "second call with identical inputs should hit the cache")
	require.Equal(t, res1.Value, res2.Value)

	key, err := cache.Key("call-1", map[string]any{"x": 1})
	require.NoError(t, err)
	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestCallUnresolvedFunctionReturnsConfigurationProblem(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)
	task := &workflow.CallTask{Function: "nowhere"}

	_, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "orphan")
	require.Error(t, err)
	var p *problem.Problem
	require.ErrorAs(t, err, &p)
	require.Equal(t, problem.KindConfiguration, p.Kind)
}

func TestSwitchSelectsFirstTruthyCase(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(map[string]any{"n": 5})

	task := &workflow.SwitchTask{Cases: []workflow.SwitchCase{
		{When: ".n > 10", Then: "big"},
		{When: ".n > 1", Then: "small"},
		{When: "", Then: "default"},
	}}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "route")
	require.NoError(t, err)
	require.Equal(t, "small", res.NextOverride)
}

func TestForIteratesAndStripsLoopVars(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(map[string]any{"total": 0})

	task := &workflow.ForTask{
		In: ".items",
		Do: []workflow.Entry{
			{Name: "accumulate", Task: &workflow.SetTask{
				Value: map[string]any{"total": "${ .total + .each }"},
			}},
		},
	}
	ec.Data["items"] = []any{1, 2, 3}

	_, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "loop")
	require.NoError(t, err)
	require.EqualValues(t, 6, ec.Data["total"])
	_, hasEach := ec.Data["each"]
	require.False(t, hasEach)
	_, hasIndex := ec.Data["index"]
	require.False(t, hasIndex)
}

func TestForkJoinMergesBranchResultsByName(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.ForkTask{Branches: []workflow.ForkBranch{
		{Name: "a", Do: []workflow.Entry{{Name: "seta", Task: &workflow.SetTask{Value: map[string]any{"v": "a"}}}}},
		{Name: "b", Do: []workflow.Entry{{Name: "setb", Task: &workflow.SetTask{Value: map[string]any{"v": "b"}}}}},
	}}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "fork")
	require.NoError(t, err)
	merged := res.Value.(map[string]any)
	require.Contains(t, merged, "a")
	require.Contains(t, merged, "b")
}

func TestForkCompeteReturnsFirstWinner(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.ForkTask{
		Compete: true,
		Branches: []workflow.ForkBranch{
			{Name: "slow", Do: []workflow.Entry{{Name: "wait", Task: &workflow.WaitTask{Duration: workflow.Duration(50 * time.Millisecond)}}}},
			{Name: "fast", Do: []workflow.Entry{{Name: "seta", Task: &workflow.SetTask{Value: map[string]any{"v": "fast"}}}}},
		},
	}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "fork")
	require.NoError(t, err)
	require.NotNil(t, res.Value)
}

func TestRaiseProducesProblemWithEvaluatedFields(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.RaiseTask{Status: 422, Title: "invalid input", Detail: "${ \"missing field\" }"}
	_, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 2, "validate")
	require.Error(t, err)
	var p *problem.Problem
	require.ErrorAs(t, err, &p)
	require.Equal(t, 422, p.Status)
	require.Equal(t, "invalid input", p.Title)
	require.Equal(t, "missing field", p.Detail)
	require.Equal(t, "/do/2/validate", p.Instance)
}

func TestTryRecoversMatchingError(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.TryTask{
		Try: []workflow.Entry{{Name: "boom", Task: &workflow.RaiseTask{Status: 503, Title: "down"}}},
		Catch: &workflow.Catch{
			Errors: workflow.ErrorMatch{With: map[string]any{"status": 503}},
			As:     "err",
			Do:     []workflow.Entry{{Name: "record", Task: &workflow.SetTask{Value: map[string]any{"recovered": true}}}},
		},
	}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "guarded")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"recovered": true}, res.Value)
	errPayload := ec.Data["err"].(map[string]any)
	require.EqualValues(t, 503, errPayload["status"])
}

func TestRunShellExecutesCommand(t *testing.T) {
	deps, _, registry := newDeps(t)
	registry.Register("shell", shellexec.New())
	ec := newCtx(nil)

	task := &workflow.RunTask{Which: workflow.RunShell, Shell: &workflow.RunShellSpec{Command: "echo", Arguments: []string{"hi"}}}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "shellout")
	require.NoError(t, err)
	out := res.Value.(map[string]any)
	require.Equal(t, "hi\n", out["stdout"])
}

type fakeAwaiter struct {
	data    map[string]any
	err     error
	respond func(result any, err error)
}

func (f *fakeAwaiter) Await(ctx context.Context, target workflow.ListenTarget, mode workflow.ReadMode) (*kinds.ListenMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &kinds.ListenMessage{Data: f.data, Respond: f.respond}, nil
}

func TestListenWithoutAwaiterIsANoop(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.ListenTask{To: workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":0"}}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "wait-for-order")
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, res.Value)
}

func TestListenRunsDoWithAwaitedMessageAndResponds(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	var respondedWith any
	var respondedErr error
	deps.Listener = &fakeAwaiter{
		data: map[string]any{"order_id": "o-9"},
		respond: func(result any, err error) {
			respondedWith = result
			respondedErr = err
		},
	}

	task := &workflow.ListenTask{
		To: workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":0", SchemaPath: "/schemas/order.yaml"},
		Do: []workflow.Entry{
			{Name: "ack", Task: &workflow.SetTask{Value: map[string]any{"accepted": "${ .order_id }"}}},
		},
	}
	res, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "wait-for-order")
	require.NoError(t, err)

	require.Equal(t, "o-9", ec.Data["order_id"], "the awaited message merges into context before Do runs")
	out := res.Value.(map[string]any)
	require.Equal(t, "o-9", out["accepted"])
	require.NoError(t, respondedErr)
	require.Equal(t, out, respondedWith)
}

func TestEmitBuildsCloudEventsEnvelope(t *testing.T) {
	deps, _, _ := newDeps(t)
	ec := newCtx(nil)

	task := &workflow.EmitTask{With: map[string]any{"type": "order.created"}}
	_, err := kinds.Dispatch(context.Background(), deps, ec, task, "do", 0, "notify")
	require.NoError(t, err)
	require.Equal(t, "1.0", ec.Data["specversion"])
	require.NotEmpty(t, ec.Data["id"])
	require.Equal(t, "order.created", ec.Data["type"])
}
