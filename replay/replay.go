// Package replay reconstructs enough state from the event log and the
// latest checkpoint to resume a crashed instance without re-executing a
// task that already completed (C8, spec §4.8 "Replay after kill").
//
// Grounded on the same event-sourcing shape the teacher uses for its
// runtime/agent/runlog.Store consumers: the log is the source of truth for
// "what happened"; the checkpoint is a cheap, possibly-stale index into it
// so a resume doesn't have to replay every event to find its starting
// point.
package replay

import (
	"github.com/durableflow/engine/runlog"
)

// CompletedTask is the result and resolved outgoing edge recorded for a
// task name that has a durable TaskCompleted event in the log.
type CompletedTask struct {
	Result any
	Next   string
}

// BuildCompletedTasks scans events for TaskCompleted entries and returns a
// map keyed by task name. If a task name appears more than once (a loop
// body re-entering the same sub-sequence, for instance), the last
// occurrence in sequence order wins.
func BuildCompletedTasks(events []*runlog.Event) (map[string]CompletedTask, error) {
	out := make(map[string]CompletedTask)
	for _, e := range events {
		if e.Type != runlog.TaskCompleted {
			continue
		}
		p, err := runlog.DecodeTaskCompleted(e)
		if err != nil {
			return nil, err
		}
		out[p.TaskName] = CompletedTask{Result: p.Result, Next: p.Next}
	}
	return out, nil
}

// FindWorkflowStarted returns the payload of the instance's WorkflowStarted
// event, used to recover the namespace/name/version/input needed to
// reconstruct an execctx.Context's descriptors on resume.
func FindWorkflowStarted(events []*runlog.Event) (*runlog.WorkflowStartedPayload, bool) {
	for _, e := range events {
		if e.Type != runlog.WorkflowStarted {
			continue
		}
		p, err := runlog.DecodeWorkflowStarted(e)
		if err != nil {
			return nil, false
		}
		return &p, true
	}
	return nil, false
}

// IsTerminal reports whether events already contain a WorkflowCompleted or
// WorkflowFailed entry, meaning there is nothing left to resume.
func IsTerminal(events []*runlog.Event) bool {
	for _, e := range events {
		if e.Type == runlog.WorkflowCompleted || e.Type == runlog.WorkflowFailed {
			return true
		}
	}
	return false
}
