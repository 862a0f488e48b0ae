package kinds

import (
	"context"

	"github.com/durableflow/engine/expr"
)

// evalTree walks v, which may be a map, a slice, or a scalar, evaluating
// any string that carries the "${ ... }" expression envelope and leaving
// everything else as a literal. Used for Set's value map and for Call/
// Emit/Run's `with`/`arguments` parameters, per spec §4.4's "evaluate
// each entry's expression; other scalars are literal" rule.
func evalTree(ctx context.Context, ev expr.Evaluator, v any, root any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		if !expr.IsExpression(val) {
			return val, nil
		}
		return ev.Eval(ctx, expr.Unwrap(val), root, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, entry := range val {
			evaluated, err := evalTree(ctx, ev, entry, root, vars)
			if err != nil {
				return nil, err
			}
			out[k] = evaluated
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, entry := range val {
			evaluated, err := evalTree(ctx, ev, entry, root, vars)
			if err != nil {
				return nil, err
			}
			out[i] = evaluated
		}
		return out, nil
	default:
		return val, nil
	}
}

// evalBare evaluates expression directly as a jq-like filter, with no
// "${ ... }" envelope expected: used for the bare-expression fields (if,
// when, in, as) that are always filters, never literal-vs-expression
// ambiguous.
func evalBare(ctx context.Context, ev expr.Evaluator, expression string, root any, vars map[string]any) (any, error) {
	return ev.Eval(ctx, expression, root, vars)
}

// truthy applies jq truthiness: every value is truthy except false and
// null/nil.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// isObjectOrArray reports whether v is a JSON object or array, as opposed
// to a scalar.
func isObjectOrArray(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
