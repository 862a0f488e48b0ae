// Package execctx implements the per-instance mutable execution context
// (C4): the evolving data document, the current/next task pointers, the
// injected descriptors, and the bookkeeping needed for terminal cleanup.
// Grounded on the teacher's runtime/agent/run.Context (RunID/TurnID/SessionID
// layering pattern), generalized to the single instance_id this spec uses.
package execctx

import (
	"time"

	"github.com/durableflow/engine/workflow"
)

// WorkflowDescriptor is bound as $workflow in expressions and injected into
// data under the __workflow reserved key.
type WorkflowDescriptor struct {
	InstanceID string    `json:"instance_id"`
	Namespace  string    `json:"namespace"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	StartTime  time.Time `json:"start_time"`
	RawInput   any       `json:"raw_input"`
}

// RuntimeDescriptor is bound as $runtime in expressions and injected under
// the __runtime reserved key.
type RuntimeDescriptor struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

// Context is the per-instance mutable execution state described in spec §3.
type Context struct {
	InstanceID string

	// Data is the evolving JSON-like document — the "workflow state". It is
	// always a map[string]any at the root while tasks are authored against
	// an object-shaped context; Set/export may temporarily replace it with
	// a scalar mid-pipeline, in which case the value is stored under a
	// synthetic wrapper by the caller as needed.
	Data map[string]any

	// TaskInput is the transient value produced by the preceding task,
	// bound as $input in output expressions.
	TaskInput any

	CurrentTask string
	NextTask    string // copied by Clone; routing uses kinds.Result.NextOverride, not this field

	Workflow WorkflowDescriptor
	Runtime  RuntimeDescriptor

	// InitialInput is the start value, used to distinguish caller-supplied
	// fields from task-produced fields at cleanup.
	InitialInput map[string]any

	// TaskOutputKeys is the set of context keys written by tasks.
	TaskOutputKeys map[string]bool

	// ScalarOutputTasks is the set of task names whose output.as filter
	// produced a non-object scalar, so the terminal unwrap rule can apply.
	ScalarOutputTasks map[string]bool

	// DataModified records whether any task has written to Data.
	DataModified bool
}

// New creates a fresh Context for a workflow start.
func New(instanceID string, doc workflow.Document, initialInput map[string]any, runtimeName, runtimeVersion string) *Context {
	if initialInput == nil {
		initialInput = map[string]any{}
	}
	data := make(map[string]any, len(initialInput))
	for k, v := range initialInput {
		data[k] = v
	}

	ctx := &Context{
		InstanceID:   instanceID,
		Data:         data,
		InitialInput: initialInput,
		Workflow: WorkflowDescriptor{
			InstanceID: instanceID,
			Namespace:  doc.Namespace,
			Name:       doc.Name,
			Version:    doc.Version,
			StartTime:  time.Now().UTC(),
			RawInput:   initialInput,
		},
		Runtime: RuntimeDescriptor{
			Engine:  runtimeName,
			Version: runtimeVersion,
		},
		TaskOutputKeys:    make(map[string]bool),
		ScalarOutputTasks: make(map[string]bool),
	}
	if first := firstTaskName(doc); first != "" {
		ctx.CurrentTask = first
	}
	return ctx
}

func firstTaskName(doc workflow.Document) string {
	if len(doc.Do) == 0 {
		return ""
	}
	return doc.Do[0].Name
}

// WithDescriptors returns a copy of data with the __workflow/__runtime
// reserved keys injected, for expression evaluation.
func (c *Context) WithDescriptors() map[string]any {
	out := make(map[string]any, len(c.Data)+2)
	for k, v := range c.Data {
		out[k] = v
	}
	out[workflow.DescriptorWorkflow] = c.Workflow
	out[workflow.DescriptorRuntime] = c.Runtime
	return out
}

// Vars returns the implicit $workflow/$runtime/$input bindings every
// expression evaluation receives, per spec §4.4.
func (c *Context) Vars() map[string]any {
	return map[string]any{
		"workflow": c.Workflow,
		"runtime":  c.Runtime,
		"input":    c.TaskInput,
	}
}

// StripReserved returns a copy of v with __-prefixed keys removed. Used
// both for cache-key hashing (I4) and for terminal output.
func StripReserved(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		if len(k) >= 2 && k[:2] == workflow.ReservedPrefix {
			continue
		}
		out[k] = val
	}
	return out
}

// MarkWritten records that task wrote keys into Data, for cleanup purposes.
func (c *Context) MarkWritten(keys ...string) {
	c.DataModified = true
	for _, k := range keys {
		c.TaskOutputKeys[k] = true
	}
}

// Clone produces a deep-enough copy of the context for a Fork branch: the
// data document is copied so subsequent branch mutations are private (I5).
// Bookkeeping sets are copied too so a branch's writes don't pollute
// siblings, but descriptors and instance identity are shared by value.
func (c *Context) Clone() *Context {
	data := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	outputKeys := make(map[string]bool, len(c.TaskOutputKeys))
	for k, v := range c.TaskOutputKeys {
		outputKeys[k] = v
	}
	scalarTasks := make(map[string]bool, len(c.ScalarOutputTasks))
	for k, v := range c.ScalarOutputTasks {
		scalarTasks[k] = v
	}
	return &Context{
		InstanceID:        c.InstanceID,
		Data:              data,
		TaskInput:         c.TaskInput,
		CurrentTask:       c.CurrentTask,
		NextTask:          c.NextTask,
		Workflow:          c.Workflow,
		Runtime:           c.Runtime,
		InitialInput:      c.InitialInput,
		TaskOutputKeys:    outputKeys,
		ScalarOutputTasks: scalarTasks,
		DataModified:      c.DataModified,
	}
}

// Cleanup applies the terminal cleanup rule from §4.2 step "Termination &
// cleanup" and returns the final output value (which may be a scalar after
// unwrapping).
func (c *Context) Cleanup(lastTaskName string) any {
	data := StripReserved(c.Data)

	if c.DataModified {
		for k := range data {
			_, fromInitial := c.InitialInput[k]
			if fromInitial && !c.TaskOutputKeys[k] {
				delete(data, k)
			}
		}
	}

	if len(data) == 1 {
		for _, v := range data {
			if !isObjectOrArray(v) && c.ScalarOutputTasks[lastTaskName] {
				return v
			}
		}
	}
	return data
}

func isObjectOrArray(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
