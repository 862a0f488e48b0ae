package main

import "github.com/durableflow/engine/workflow"

// listenTargets walks doc's task graph depth-first and collects every
// Listen task's declared target. A document can declare more than one
// Listen task (e.g. one HTTP-schema endpoint and one RPC endpoint), and
// Listen tasks can be nested inside Do/For/Fork/Try bodies and inside
// another Listen task's Do, so this walk has to recurse into every
// sub-sequence those task kinds carry.
func listenTargets(doc workflow.Document) []workflow.ListenTarget {
	var targets []workflow.ListenTarget
	walkEntries(doc.Do, &targets)
	return targets
}

func walkEntries(entries []workflow.Entry, out *[]workflow.ListenTarget) {
	for _, e := range entries {
		walkTask(e.Task, out)
	}
}

func walkTask(t workflow.Task, out *[]workflow.ListenTarget) {
	switch v := t.(type) {
	case *workflow.ListenTask:
		*out = append(*out, v.To)
		walkEntries(v.Do, out)
	case *workflow.DoTask:
		walkEntries(v.Do, out)
	case *workflow.ForTask:
		walkEntries(v.Do, out)
	case *workflow.ForkTask:
		for _, b := range v.Branches {
			walkEntries(b.Do, out)
		}
	case *workflow.TryTask:
		walkEntries(v.Try, out)
		if v.Catch != nil {
			walkEntries(v.Catch.Do, out)
		}
	}
}
