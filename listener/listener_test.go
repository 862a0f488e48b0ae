package listener_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/workflow"
)

func TestAwaitDispatchRendezvous(t *testing.T) {
	r := listener.New()
	target := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":9001", SchemaPath: "/schemas/order.yaml"}

	var msg any
	var awaitErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		m, err := r.Await(context.Background(), target, workflow.ReadEnvelope)
		awaitErr = err
		if err == nil {
			msg = m.Data
			m.Respond(map[string]any{"accepted": true}, nil)
		}
	}()

	out, err := r.Dispatch(context.Background(), listener.KeyFor(target), map[string]any{"order_id": "o-1"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"accepted": true}, out)

	<-done
	require.NoError(t, awaitErr)
	require.Equal(t, map[string]any{"order_id": "o-1"}, msg)
}

func TestAwaitAppliesReadDataMode(t *testing.T) {
	r := listener.New()
	target := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":9002", SchemaPath: "/schemas/event.yaml"}

	done := make(chan map[string]any, 1)
	go func() {
		m, err := r.Await(context.Background(), target, workflow.ReadData)
		if err == nil {
			m.Respond(nil, nil)
			done <- m.Data
		}
	}()

	envelope := map[string]any{
		"specversion": "1.0",
		"type":        "order.created",
		"data":        map[string]any{"order_id": "o-2"},
	}
	_, err := r.Dispatch(context.Background(), listener.KeyFor(target), envelope)
	require.NoError(t, err)

	select {
	case data := <-done:
		require.Equal(t, map[string]any{"order_id": "o-2"}, data)
	case <-time.After(time.Second):
		t.Fatal("Await never received the dispatched message")
	}
}

func TestDispatchRespectsContextCancellation(t *testing.T) {
	r := listener.New()
	target := workflow.ListenTarget{Protocol: workflow.ListenRPC, BindAddress: ":9003", SchemaPath: "/schemas/svc.proto", ServiceName: "Orders"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Dispatch(ctx, listener.KeyFor(target), map[string]any{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyForGroupsRPCByServiceName(t *testing.T) {
	a := workflow.ListenTarget{Protocol: workflow.ListenRPC, BindAddress: ":9004", SchemaPath: "/s.proto", ServiceName: "Orders"}
	b := workflow.ListenTarget{Protocol: workflow.ListenRPC, BindAddress: ":9004", SchemaPath: "/s.proto", ServiceName: "Billing"}
	require.NotEqual(t, listener.KeyFor(a), listener.KeyFor(b))

	c := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":9004", SchemaPath: "/s.proto", ServiceName: "Orders"}
	d := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":9004", SchemaPath: "/s.proto", ServiceName: "Billing"}
	require.Equal(t, listener.KeyFor(c), listener.KeyFor(d), "HTTP targets don't group by service_name")
}
