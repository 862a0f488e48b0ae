package kinds

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// handleEmit implements §4.4 Emit: build a CloudEvents 1.0 envelope and
// spread it into context.
func handleEmit(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.EmitTask) (Result, error) {
	root := ec.WithDescriptors()
	vars := ec.Vars()

	attrs, err := evalTree(ctx, deps.Expr, t.With, root, vars)
	if err != nil {
		return Result{}, err
	}
	attrMap, _ := attrs.(map[string]any)

	envelope := map[string]any{
		"id":          uuid.NewString(),
		"specversion": "1.0",
		"time":        time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range attrMap {
		envelope[k] = v
	}

	keys := make([]string, 0, len(envelope))
	for k, v := range envelope {
		ec.Data[k] = v
		keys = append(keys, k)
	}
	ec.MarkWritten(keys...)

	return Result{Value: envelope}, nil
}
