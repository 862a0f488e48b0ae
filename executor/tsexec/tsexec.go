// Package tsexec implements the "typescript" protocol as a thin adapter
// over executor/shellexec: it shells out to an external ts-node (or
// compiled-then-node) interpreter rather than embedding a TypeScript
// runtime. A real TypeScript code runtime is explicitly out of scope
// (spec §1); this satisfies the Executor contract for Run tasks that
// name the "typescript" protocol without pretending to provide one.
package tsexec

import (
	"context"
	"encoding/json"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/shellexec"
)

// Params is the evaluated shape a Run task supplies for the typescript
// protocol.
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

// New returns a typescript Executor.
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
		interpreter = "ts-node"
	}

	args := p.Arguments
	switch {
	case p.Path != "":
		args = append([]string{p.Path}, args...)
	case p.Script != "":
		args = append([]string{"-e", p.Script}, args...)
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
