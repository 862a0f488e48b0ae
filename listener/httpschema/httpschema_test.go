package httpschema_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/listener/httpschema"
	"github.com/durableflow/engine/workflow"
)

func writeTempSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order.yaml")
	doc := []byte("openapi: \"3.0.0\"\n" +
		"info:\n  title: orders\n  version: \"1.0\"\n" +
		"paths:\n  /orders:\n    post:\n      responses:\n        \"200\":\n          description: accepted\n")
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	return path
}

func TestServerRoutesRequestToRegistry(t *testing.T) {
	schemaPath := writeTempSchema(t)
	registry := listener.New()
	srv := httpschema.New(registry, nil)

	target := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: "127.0.0.1:18180", SchemaPath: schemaPath}
	require.NoError(t, srv.Register(target))
	defer srv.Shutdown(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, err := registry.Await(context.Background(), target, workflow.ReadEnvelope)
		require.NoError(t, err)
		require.Equal(t, "o-1", msg.Data["order_id"])
		msg.Respond(map[string]any{"status": "accepted"}, nil)
	}()

	time.Sleep(50 * time.Millisecond) // let the listener goroutine start accepting

	body, _ := json.Marshal(map[string]any{"order_id": "o-1"})
	resp, err := http.Post("http://127.0.0.1:18180"+schemaPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "accepted", out["status"])

	<-done
}

func TestServerRejectsInvalidSchemaAtRegistration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: openapi: ["), 0o644))

	registry := listener.New()
	srv := httpschema.New(registry, nil)
	err := srv.Register(workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: "127.0.0.1:18181", SchemaPath: path})
	require.Error(t, err)
}
