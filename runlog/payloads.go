package runlog

import "encoding/json"

// Typed payloads for the lifecycle events. WorkflowStarted and
// TaskCompleted have matching Decode* helpers, which replay calls instead
// of unmarshalling the envelope's raw JSON by hand.

type WorkflowStartedPayload struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Input     any    `json:"input"`
}

type TaskEnteredPayload struct {
	TaskName string `json:"task_name"`
	Kind     string `json:"kind"`
}

type TaskCompletedPayload struct {
	TaskName string `json:"task_name"`
	Result   any    `json:"result"`

	// Next is the task name the dispatcher routed to after this one
	// completed (its NextOverride, then/implicit edge already resolved).
	// Replay uses it to skip straight past an already-completed task
	// without re-deriving a Switch's dynamic routing decision.
	Next string `json:"next,omitempty"`
}

// DecodeTaskCompleted unmarshals e's payload as a TaskCompletedPayload.
func DecodeTaskCompleted(e *Event) (TaskCompletedPayload, error) {
	var p TaskCompletedPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// DecodeWorkflowStarted unmarshals e's payload as a WorkflowStartedPayload.
func DecodeWorkflowStarted(e *Event) (WorkflowStartedPayload, error) {
	var p WorkflowStartedPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

type TaskFaultedPayload struct {
	TaskName string `json:"task_name"`
	Problem  any    `json:"problem"`
}

type TaskRetriedPayload struct {
	TaskName string `json:"task_name"`
	Attempt  int    `json:"attempt"`
}

type WorkflowCompletedPayload struct {
	Output any `json:"output"`
}

type WorkflowFailedPayload struct {
	Problem any `json:"problem"`
}

type WorkflowCorrelationCompletedPayload struct {
	// CorrelationOutput is a non-standard extension field (spec §6.2) that
	// lets perpetual workflows publish per-message results to an observer
	// without a state query.
	CorrelationOutput any `json:"correlation_output"`
}

// Marshal is a small helper for building an Event's Payload field from a
// typed struct.
func Marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
