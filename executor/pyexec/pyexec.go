// Package pyexec implements the "python" protocol as a thin adapter over
// executor/shellexec: it shells out to an external python3 interpreter
// rather than embedding one. A real Python code runtime is explicitly
// out of scope (spec §1); this satisfies the Executor contract for Run
// tasks that name the "python" protocol without pretending to provide
// one.
package pyexec

import (
	"context"
	"encoding/json"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/shellexec"
)

// Params is the evaluated shape a Run task supplies for the python
// protocol: Script is written to a temp file's worth of inline source
// ("-c" style), or Path names a script already on disk.
type Params struct {
	Interpreter string   `json:"interpreter,omitempty"`
	Path        string   `json:"path,omitempty"`
	Script      string   `json:"script,omitempty"`
	Arguments   []string `json:"arguments,omitempty"`
}

// Executor delegates to a shellexec.Executor with the interpreter and
// script/path translated into shellexec.Params.
type Executor struct {
	shell *shellexec.Executor
}

// New returns a python Executor.
func New() *Executor { return &Executor{shell: shellexec.New()} }

var _ executor.Executor = (*Executor)(nil)

// Exec implements executor.Executor.
func (e *Executor) Exec(ctx context.Context, taskName string, params any, wctx executor.Context, streamer executor.Streamer) (any, error) {
	p, err := toParams(params)
	if err != nil {
		return nil, err
	}
	interpreter := p.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	args := p.Arguments
	switch {
	case p.Path != "":
		args = append([]string{p.Path}, args...)
	case p.Script != "":
		args = append([]string{"-c", p.Script}, args...)
	}

	shellParams := shellexec.Params{Command: interpreter, Arguments: args}
	return e.shell.Exec(ctx, taskName, shellParams, wctx, streamer)
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
