package shellexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

func TestExecReturnsStdoutOnSuccess(t *testing.T) {
	e := New()
	out, err := e.Exec(context.Background(), "echo-task", Params{Command: "echo", Arguments: []string{"hello"}}, executor.Context{}, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, "hello\n", m["stdout"])
	require.Equal(t, 0, m["exit_code"])
}

func TestExecReturnsExecutionProblemOnNonzeroExit(t *testing.T) {
	e := New()
	_, err := e.Exec(context.Background(), "fail-task", Params{Command: "sh", Arguments: []string{"-c", "exit 3"}}, executor.Context{}, nil)
	require.Error(t, err)
	p, ok := err.(*problem.Problem)
	require.True(t, ok)
	require.Equal(t, problem.KindExecution, p.Kind)
}

func TestExecRequiresCommand(t *testing.T) {
	e := New()
	_, err := e.Exec(context.Background(), "task", Params{}, executor.Context{}, nil)
	require.Error(t, err)
	p, ok := err.(*problem.Problem)
	require.True(t, ok)
	require.Equal(t, problem.KindConfiguration, p.Kind)
}
