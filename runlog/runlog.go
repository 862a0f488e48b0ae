// Package runlog defines the append-only per-instance event log contract
// (C1) and the typed lifecycle events the engine appends to it. Grounded on
// the teacher's runtime/agent/runlog.Store contract and runtime/agent/hooks
// typed-event pattern, generalized from per-agent-run events to per-workflow
// -instance events.
package runlog

import (
	"context"
	"encoding/json"
	"time"
)

// EventType discriminates the typed lifecycle events listed in spec §3.
type EventType string

const (
	WorkflowStarted              EventType = "WorkflowStarted"
	TaskCreated                  EventType = "TaskCreated"
	TaskEntered                  EventType = "TaskEntered"
	TaskStarted                  EventType = "TaskStarted"
	TaskRetried                  EventType = "TaskRetried"
	TaskCompleted                EventType = "TaskCompleted"
	TaskFaulted                  EventType = "TaskFaulted"
	TaskCancelled                EventType = "TaskCancelled"
	TaskSuspended                EventType = "TaskSuspended"
	TaskResumed                  EventType = "TaskResumed"
	WorkflowSuspended            EventType = "WorkflowSuspended"
	WorkflowResumed              EventType = "WorkflowResumed"
	WorkflowCompleted            EventType = "WorkflowCompleted"
	WorkflowFailed                EventType = "WorkflowFailed"
	WorkflowCancelled             EventType = "WorkflowCancelled"
	WorkflowCorrelationStarted    EventType = "WorkflowCorrelationStarted"
	WorkflowCorrelationCompleted EventType = "WorkflowCorrelationCompleted"
)

// Durable is the subset of event types required for correct replay (§4.8).
// The rest are informational and may be dropped under back-pressure.
func (t EventType) Durable() bool {
	switch t {
	case WorkflowStarted, TaskCompleted, WorkflowCompleted, WorkflowFailed:
		return true
	default:
		return false
	}
}

// Event is one entry in an instance's append-only log. Sequence is dense
// and monotone within an instance (I2); it is assigned by the Store on
// Append, not by the caller.
type Event struct {
	Sequence   int64           `json:"sequence"`
	InstanceID string          `json:"instance_id"`
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Page is one page of a List result.
type Page struct {
	Events     []*Event
	NextCursor string
}

// Store is the event log persistence contract (C1). Implementations must
// be safe for concurrent use across instances (§5 shared-resource policy).
type Store interface {
	// Append assigns the next sequence number for e.InstanceID and persists
	// e. The caller does not set Sequence.
	Append(ctx context.Context, e *Event) error

	// List returns events for instanceID in strict sequence order, starting
	// after cursor (empty cursor means "from the beginning"), up to limit
	// events.
	List(ctx context.Context, instanceID, cursor string, limit int) (Page, error)

	// All returns every event for instanceID in sequence order; used by the
	// replay controller to build completed-task state. Implementations may
	// build this on top of List.
	All(ctx context.Context, instanceID string) ([]*Event, error)
}
