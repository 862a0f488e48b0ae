// Package gojq adapts github.com/itchyny/gojq as the default expr.Evaluator
// implementation: a pure-Go jq dialect close enough to the jq-like filter
// language the spec names as an external collaborator (§1).
package gojq

import (
	"context"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/durableflow/engine/expr"
)

// Evaluator compiles and caches gojq queries keyed by expression text, then
// evaluates them with the supplied root value and variable bindings.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*gojq.Code
}

// New returns a gojq-backed expr.Evaluator.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*gojq.Code)}
}

var _ expr.Evaluator = (*Evaluator)(nil)

// Eval compiles expression (caching by text) and runs it against root with
// vars bound as "$name". Multiple results from the jq pipeline are
// collapsed: zero results yield nil, a single result is returned as-is,
// and multiple results are returned as a []any.
func (e *Evaluator) Eval(ctx context.Context, expression string, root any, vars map[string]any) (any, error) {
	names := make([]string, 0, len(vars))
	values := make([]any, 0, len(vars))
	for k, v := range vars {
		names = append(names, "$"+k)
		values = append(values, v)
	}

	code, err := e.compile(expression, names)
	if err != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", expression, err)
	}

	iter := code.RunWithContext(ctx, root, values...)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("expr: evaluate %q: %w", expression, err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (e *Evaluator) compile(expression string, names []string) (*gojq.Code, error) {
	key := cacheKey(expression, names)
	e.mu.Lock()
	if code, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return code, nil
	}
	e.mu.Unlock()

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, err
	}
	code, err := gojq.Compile(query, gojq.WithVariables(names))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = code
	e.mu.Unlock()
	return code, nil
}

func cacheKey(expression string, names []string) string {
	key := expression
	for _, n := range names {
		key += "\x00" + n
	}
	return key
}
