package durableflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/cache/inmem"
	"github.com/durableflow/engine/catalog"
	checkpointinmem "github.com/durableflow/engine/checkpoint/inmem"
	"github.com/durableflow/engine/dispatch"
	"github.com/durableflow/engine/durableflow"
	engineinmem "github.com/durableflow/engine/engine/inmem"
	"github.com/durableflow/engine/expr/gojq"
	runloginmem "github.com/durableflow/engine/runlog/inmem"
	"github.com/durableflow/engine/workflow"
)

func newTestEngine(t *testing.T) *durableflow.Engine {
	t.Helper()
	cat := catalog.New()
	d, err := dispatch.New(dispatch.Options{
		Expr:       gojq.New(),
		RunLog:     runloginmem.New(),
		Checkpoint: checkpointinmem.New(),
		Cache:      inmem.New(),
		Workflows:  cat,
	})
	require.NoError(t, err)

	e, err := durableflow.New(engineinmem.New(), d, cat)
	require.NoError(t, err)
	return e
}

func greetingDoc() workflow.Document {
	return workflow.Document{
		Namespace: "test", Name: "greet", Version: "v1",
		Do: []workflow.Entry{
			{Name: "assign", Task: &workflow.SetTask{
				Value: map[string]any{"greeting": "${ \"hello \" + .name }"},
			}},
		},
	}
}

func TestExecuteRunsRegisteredDocumentToCompletion(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterWorkflow(context.Background(), greetingDoc()))

	handle, err := e.Execute(context.Background(), "inst-1", "test", "greet", "v1", map[string]any{"name": "ada"})
	require.NoError(t, err)

	out, err := handle.WaitForCompletion(context.Background())
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, "hello ada", m["greeting"])
}

func TestExecuteUnknownDocumentErrors(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(context.Background(), "inst-2", "test", "missing", "v1", nil)
	require.Error(t, err)
}
