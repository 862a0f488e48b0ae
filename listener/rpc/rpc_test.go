package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/workflow"
)

// Internal (package rpc) test, not rpc_test: it needs rawMessage/rawCodec
// to build a client that speaks the same forced encoding the server uses.
func TestServerProxiesCallToRegistry(t *testing.T) {
	registry := listener.New()
	srv := New(registry, nil)

	target := workflow.ListenTarget{
		Protocol: workflow.ListenRPC, BindAddress: "127.0.0.1:18282",
		SchemaPath: "/schemas/orders.proto", ServiceName: "Orders",
	}
	require.NoError(t, srv.Register(target))
	defer srv.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, err := registry.Await(context.Background(), target, workflow.ReadEnvelope)
		require.NoError(t, err)
		require.Equal(t, "o-2", msg.Data["order_id"])
		msg.Respond(map[string]any{"status": "accepted"}, nil)
	}()

	time.Sleep(50 * time.Millisecond)

	conn, err := grpc.NewClient(target.BindAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	reqBytes, err := json.Marshal(map[string]any{"order_id": "o-2"})
	require.NoError(t, err)

	var reply rawMessage
	err = conn.Invoke(context.Background(), "/durableflow.Orders/Handle", &rawMessage{data: reqBytes}, &reply,
		grpc.CallContentSubtype("durableflow-raw"))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(reply.data, &out))
	require.Equal(t, "accepted", out["status"])

	<-done
}
