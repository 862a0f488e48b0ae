package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/cache/inmem"
	"github.com/durableflow/engine/checkpoint"
	checkpointinmem "github.com/durableflow/engine/checkpoint/inmem"
	"github.com/durableflow/engine/dispatch"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/expr/gojq"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/runlog"
	runloginmem "github.com/durableflow/engine/runlog/inmem"
	"github.com/durableflow/engine/workflow"
)

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, runlog.Store, checkpoint.Store) {
	t.Helper()
	rl := runloginmem.New()
	ck := checkpointinmem.New()
	d, err := dispatch.New(dispatch.Options{
		Expr:       gojq.New(),
		RunLog:     rl,
		Checkpoint: ck,
		Cache:      inmem.New(),
		Executors:  executor.NewRegistry(),
	})
	require.NoError(t, err)
	return d, rl, ck
}

func TestExecuteStraightLineSetThenWait(t *testing.T) {
	d, rl, ck := newDispatcher(t)
	ctx := context.Background()

	doc := workflow.Document{
		Namespace: "test", Name: "straight-line", Version: "v1",
		Do: []workflow.Entry{
			{Name: "assign", Task: &workflow.SetTask{
				CommonFields: workflow.Common{Then: "pause"},
				Value:        map[string]any{"greeting": "${ \"hello\" }"},
			}},
			{Name: "pause", Task: &workflow.WaitTask{Duration: 0}},
		},
	}

	out, err := d.Execute(ctx, "inst-1", doc, nil)
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hello", m["greeting"])

	events, err := rl.All(ctx, "inst-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, runlog.WorkflowStarted, events[0].Type)
	require.Equal(t, runlog.WorkflowCompleted, events[len(events)-1].Type)

	cp, ok, err := ck.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pause", cp.CurrentTask)
}

func TestExecuteSwitchSelectsBranch(t *testing.T) {
	d, _, _ := newDispatcher(t)
	ctx := context.Background()

	doc := workflow.Document{
		Namespace: "test", Name: "branching", Version: "v1",
		Do: []workflow.Entry{
			{Name: "route", Task: &workflow.SwitchTask{
				Cases: []workflow.SwitchCase{
					{When: ".score > 10", Then: "high"},
					{When: "", Then: "low"},
				},
			}},
			{Name: "high", Task: &workflow.SetTask{
				CommonFields: workflow.Common{Then: "exit"},
				Value:        map[string]any{"bucket": "high"},
			}},
			{Name: "low", Task: &workflow.SetTask{
				CommonFields: workflow.Common{Then: "exit"},
				Value:        map[string]any{"bucket": "low"},
			}},
		},
	}

	out, err := d.Execute(ctx, "inst-2", doc, map[string]any{"score": 42})
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, "high", m["bucket"])
}

func TestExecuteTryCatchesRaise(t *testing.T) {
	d, _, _ := newDispatcher(t)
	ctx := context.Background()

	doc := workflow.Document{
		Namespace: "test", Name: "recovering", Version: "v1",
		Do: []workflow.Entry{
			{Name: "guarded", Task: &workflow.TryTask{
				Try: []workflow.Entry{
					{Name: "boom", Task: &workflow.RaiseTask{Status: 503, Title: "unavailable"}},
				},
				Catch: &workflow.Catch{
					Errors: workflow.ErrorMatch{With: map[string]any{"status": 503}},
					As:     "failure",
					Do: []workflow.Entry{
						{Name: "record", Task: &workflow.SetTask{
							Value: map[string]any{"recovered": true},
						}},
					},
				},
			}},
		},
	}

	out, err := d.Execute(ctx, "inst-3", doc, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, true, m["recovered"])
	failure, ok := m["failure"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 503, failure["status"])
}

func TestExecutePropagatesUnmatchedRaise(t *testing.T) {
	d, _, _ := newDispatcher(t)
	ctx := context.Background()

	doc := workflow.Document{
		Namespace: "test", Name: "unmatched", Version: "v1",
		Do: []workflow.Entry{
			{Name: "guarded", Task: &workflow.TryTask{
				Try: []workflow.Entry{
					{Name: "boom", Task: &workflow.RaiseTask{Status: 500, Title: "fatal"}},
				},
				Catch: &workflow.Catch{
					Errors: workflow.ErrorMatch{With: map[string]any{"status": 404}},
				},
			}},
		},
	}

	_, err := d.Execute(ctx, "inst-4", doc, nil)
	require.Error(t, err)
	var p *problem.Problem
	require.ErrorAs(t, err, &p)
	require.Equal(t, 500, p.Status)
}
