package kinds

import (
	"context"

	"github.com/durableflow/engine/execctx"
	"github.com/durableflow/engine/workflow"
)

// branchOutcome is one branch's completion: its name (for join-mode
// merging), its result, and any error it raised.
type branchOutcome struct {
	name string
	val  any
	err  error
}

// handleFork implements §4.4 Fork: run every branch against its own
// execctx.Context.Clone() so branch mutations stay private (I5). Compete
// mode returns the first branch to finish and best-effort-cancels the
// rest; join mode waits for all branches and merges {branch_name: result}.
func handleFork(ctx context.Context, deps Deps, ec *execctx.Context, t *workflow.ForkTask, taskName string) (Result, error) {
	n := len(t.Branches)
	results := make(chan branchOutcome, n)

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, b := range t.Branches {
		b := b
		branchEc := ec.Clone()
		go func() {
			val, err := deps.Runner.RunSequence(branchCtx, branchEc, b.Do, taskName+"/"+b.Name)
			results <- branchOutcome{name: b.Name, val: val, err: err}
		}()
	}

	if t.Compete {
		first := <-results
		cancel()
		go drainBranches(results, n-1)
		if first.err != nil {
			return Result{}, first.err
		}
		return Result{Value: first.val}, nil
	}

	outcomes := make(map[string]branchOutcome, n)
	for i := 0; i < n; i++ {
		o := <-results
		outcomes[o.name] = o
	}

	merged := make(map[string]any, n)
	for _, b := range t.Branches {
		o := outcomes[b.Name]
		if o.err != nil {
			return Result{}, o.err
		}
		merged[b.Name] = o.val
	}
	return Result{Value: merged}, nil
}

// drainBranches consumes the remaining branch results after a compete
// winner has been picked, so losing goroutines never block forever trying
// to send on results.
func drainBranches(results <-chan branchOutcome, remaining int) {
	for i := 0; i < remaining; i++ {
		<-results
	}
}
