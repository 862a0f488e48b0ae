// Package shellexec implements the "shell" protocol executor: spawns a
// subprocess, streams stdout/stderr by line, and returns
// {stdout, stderr, exit_code}. Grounded on the original engine's
// run.rs shell branch (piped stdout/stderr, real-time streaming, nonzero
// exit treated as an execution-kind error).
package shellexec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

// Params is the evaluated shape a Run-shell task supplies.
type Params struct {
	Command   string   `json:"command"`
	Arguments []string `json:"arguments,omitempty"`
}

// Executor spawns subprocesses via os/exec.
type Executor struct{}

// New returns a shell Executor.
func New() *Executor { return &Executor{} }

var _ executor.Executor = (*Executor)(nil)

// Exec implements executor.Executor.
func (e *Executor) Exec(ctx context.Context, taskName string, params any, _ executor.Context, streamer executor.Streamer) (any, error) {
	p, err := toParams(params)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("run", 0, taskName))
	}
	if p.Command == "" {
		return nil, problem.New(problem.KindConfiguration, 400, "missing command", "shell executor requires a command", problem.InstancePointer("run", 0, taskName))
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Arguments...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("run", 0, taskName))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("run", 0, taskName))
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go streamTo(&wg, stdoutPipe, &stdoutBuf, taskName, "stdout", streamer)
	go streamTo(&wg, stderrPipe, &stderrBuf, taskName, "stderr", streamer)

	if err := cmd.Start(); err != nil {
		return nil, problem.New(problem.KindExecution, 500, "failed to start command", err.Error(), problem.InstancePointer("run", 0, taskName))
	}
	wg.Wait()
	waitErr := cmd.Wait()

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, problem.New(problem.KindExecution, 500, "command failed", waitErr.Error(), problem.InstancePointer("run", 0, taskName))
		}
	}

	result := map[string]any{
		"stdout":    stdoutBuf.String(),
		"stderr":    stderrBuf.String(),
		"exit_code": exitCode,
	}

	if exitCode != 0 {
		return result, problem.New(problem.KindExecution, 500, "command exited nonzero",
			fmt.Sprintf("%q exited with code %d", p.Command, exitCode),
			problem.InstancePointer("run", 0, taskName))
	}
	return result, nil
}

func streamTo(wg *sync.WaitGroup, r io.Reader, buf *bytes.Buffer, taskName, stream string, streamer executor.Streamer) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if streamer != nil {
			streamer.WriteLine(taskName, stream, line)
		}
	}
}

func toParams(v any) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Params{}, err
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}
