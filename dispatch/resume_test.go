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
	"github.com/durableflow/engine/runlog"
	runloginmem "github.com/durableflow/engine/runlog/inmem"
	"github.com/durableflow/engine/workflow"
)

func resumeDoc() workflow.Document {
	return workflow.Document{
		Namespace: "test", Name: "resumable", Version: "v1",
		Do: []workflow.Entry{
			{Name: "a", Task: &workflow.SetTask{
				CommonFields: workflow.Common{Then: "b"},
				Value:        map[string]any{"greeting": "${ \"hi\" }"},
			}},
			{Name: "b", Task: &workflow.CallTask{
				CommonFields: workflow.Common{Then: "c"},
				Function:     "track",
			}},
			{Name: "c", Task: &workflow.SetTask{
				Value: map[string]any{"done": true},
			}},
		},
	}
}

func newResumableDispatcher(t *testing.T) (*dispatch.Dispatcher, runlog.Store, checkpoint.Store, *int) {
	t.Helper()
	rl := runloginmem.New()
	ck := checkpointinmem.New()
	calls := 0
	registry := executor.NewRegistry()
	registry.Register("track", executor.Func(func(ctx context.Context, taskName string, params any, wctx executor.Context, streamer executor.Streamer) (any, error) {
		calls++
		return map[string]any{"tracked": calls}, nil
	}))
	d, err := dispatch.New(dispatch.Options{
		Expr:       gojq.New(),
		RunLog:     rl,
		Checkpoint: ck,
		Cache:      inmem.New(),
		Executors:  registry,
	})
	require.NoError(t, err)
	return d, rl, ck, &calls
}

// TestResumeContinuesPastCheckpoint models a kill between "a" completing
// and "b" starting: the checkpoint already points at "b", and Resume should
// run it exactly once.
func TestResumeContinuesPastCheckpoint(t *testing.T) {
	d, rl, ck, calls := newResumableDispatcher(t)
	ctx := context.Background()
	const instanceID = "inst-resume-1"

	require.NoError(t, rl.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       runlog.WorkflowStarted,
		Payload:    runlog.Marshal(runlog.WorkflowStartedPayload{Namespace: "test", Name: "resumable", Version: "v1"}),
	}))
	require.NoError(t, rl.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       runlog.TaskCompleted,
		Payload:    runlog.Marshal(runlog.TaskCompletedPayload{TaskName: "a", Result: map[string]any{"greeting": "hi"}, Next: "b"}),
	}))
	require.NoError(t, ck.Save(ctx, &checkpoint.Checkpoint{
		InstanceID: instanceID, CurrentTask: "b", Data: map[string]any{"greeting": "hi"},
	}))

	out, err := d.Resume(ctx, instanceID, resumeDoc())
	require.NoError(t, err)
	require.Equal(t, 1, *calls, "b's handler should run exactly once")
	m := out.(map[string]any)
	require.Equal(t, true, m["done"])
	require.EqualValues(t, 1, m["tracked"])
}

// TestResumeSplicesPastDriftedCheckpoint models a kill between "b"'s
// TaskCompleted event and the checkpoint write that should have followed
// it: the log already shows "b" done, but the checkpoint is still one step
// behind. Resume must not re-invoke "b"'s handler, just replay its
// recorded result.
func TestResumeSplicesPastDriftedCheckpoint(t *testing.T) {
	d, rl, ck, calls := newResumableDispatcher(t)
	ctx := context.Background()
	const instanceID = "inst-resume-2"

	require.NoError(t, rl.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       runlog.WorkflowStarted,
		Payload:    runlog.Marshal(runlog.WorkflowStartedPayload{Namespace: "test", Name: "resumable", Version: "v1"}),
	}))
	require.NoError(t, rl.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       runlog.TaskCompleted,
		Payload:    runlog.Marshal(runlog.TaskCompletedPayload{TaskName: "a", Result: map[string]any{"greeting": "hi"}, Next: "b"}),
	}))
	require.NoError(t, rl.Append(ctx, &runlog.Event{
		InstanceID: instanceID,
		Type:       runlog.TaskCompleted,
		Payload:    runlog.Marshal(runlog.TaskCompletedPayload{TaskName: "b", Result: map[string]any{"tracked": 99}, Next: "c"}),
	}))
	// Checkpoint never made it past "a" before the crash.
	require.NoError(t, ck.Save(ctx, &checkpoint.Checkpoint{
		InstanceID: instanceID, CurrentTask: "b", Data: map[string]any{"greeting": "hi"},
	}))

	out, err := d.Resume(ctx, instanceID, resumeDoc())
	require.NoError(t, err)
	require.Equal(t, 0, *calls, "b already completed in the log; its handler must not run again")
	m := out.(map[string]any)
	require.Equal(t, true, m["done"])
	require.EqualValues(t, 99, m["tracked"])
}
