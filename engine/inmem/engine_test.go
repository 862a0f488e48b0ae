package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/engine"
)

func TestStartWorkflowExecutesActivityAndCompletes(t *testing.T) {
	e := New()
	ctx := context.Background()

	require.NoError(t, e.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "double",
		Handler: func(_ context.Context, input any) (any, error) {
			return input.(int) * 2, nil
		},
	}))

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "doubler",
		Handler: func(wc engine.WorkflowContext, input any) (any, error) {
			var out int
			err := wc.ExecuteActivity(wc.Context(), engine.ActivityRequest{Name: "double", Input: input}, &out)
			return out, err
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-1", Workflow: "doubler", Input: 21})
	require.NoError(t, err)

	var result int
	require.NoError(t, h.Wait(ctx, &result))
	require.Equal(t, 42, result)

	status, err := e.(*eng).QueryRunStatus(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, status)
}

func TestNewTimerResolvesAfterDuration(t *testing.T) {
	e := New()
	ctx := context.Background()

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "waiter",
		Handler: func(wc engine.WorkflowContext, _ any) (any, error) {
			fut, err := wc.NewTimer(wc.Context(), 10*time.Millisecond)
			if err != nil {
				return nil, err
			}
			return "done", fut.Get(wc.Context(), nil)
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-2", Workflow: "waiter"})
	require.NoError(t, err)

	var out string
	require.NoError(t, h.Wait(ctx, &out))
	require.Equal(t, "done", out)
}

func TestSignalChannelDeliversPayload(t *testing.T) {
	e := New()
	ctx := context.Background()
	started := make(chan struct{})

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "signaled",
		Handler: func(wc engine.WorkflowContext, _ any) (any, error) {
			close(started)
			var payload string
			if err := wc.SignalChannel("greeting").Receive(wc.Context(), &payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-3", Workflow: "signaled"})
	require.NoError(t, err)

	<-started
	require.NoError(t, h.Signal(ctx, "greeting", "hello"))

	var out string
	require.NoError(t, h.Wait(ctx, &out))
	require.Equal(t, "hello", out)
}
