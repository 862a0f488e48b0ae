package httpexec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

func TestExecReturnsDecodedJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := New(nil)
	out, err := e.Exec(context.Background(), "call-it", Params{Method: "GET", URL: srv.URL}, executor.Context{}, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, 200, m["status"])
	require.Equal(t, map[string]any{"ok": true}, m["body"])
}

func TestExecReturnsExecutionProblemOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(nil)
	_, err := e.Exec(context.Background(), "call-it", Params{Method: "GET", URL: srv.URL}, executor.Context{}, nil)
	require.Error(t, err)
	p, ok := err.(*problem.Problem)
	require.True(t, ok)
	require.Equal(t, 500, p.Status)
	require.Equal(t, problem.KindExecution, p.Kind)
}

func TestExecRequiresURL(t *testing.T) {
	e := New(nil)
	_, err := e.Exec(context.Background(), "call-it", Params{Method: "GET"}, executor.Context{}, nil)
	require.Error(t, err)
	p, ok := err.(*problem.Problem)
	require.True(t, ok)
	require.Equal(t, problem.KindConfiguration, p.Kind)
}
