// Package workflow defines the static data model for a compiled workflow
// document: the task kinds, their common fields, and the small set of value
// types (durations, catalog references, error specs) that the rest of the
// engine operates on.
//
// The 12 task kinds are a tagged union, not a class hierarchy: every kind
// implements Task with a Kind discriminator and a Common accessor returning
// the fields shared by all kinds. Package kinds routes each task to its
// handler with a type switch over the concrete task types.
package workflow

// Kind discriminates the 12 task variants.
type Kind string

const (
	KindSet    Kind = "set"
	KindCall   Kind = "call"
	KindDo     Kind = "do"
	KindFor    Kind = "for"
	KindSwitch Kind = "switch"
	KindFork   Kind = "fork"
	KindTry    Kind = "try"
	KindRaise  Kind = "raise"
	KindWait   Kind = "wait"
	KindRun    Kind = "run"
	KindEmit   Kind = "emit"
	KindListen Kind = "listen"
)

// ReservedPrefix marks context keys injected by the engine (descriptors).
// Keys with this prefix are excluded from cache-key hashing and stripped
// from terminal workflow output.
const ReservedPrefix = "__"

// Reserved descriptor keys bound into the data document during evaluation.
const (
	DescriptorWorkflow = "__workflow"
	DescriptorRuntime  = "__runtime"
)

// Document is a compiled workflow definition: identity, optional global
// filters, the `use` section, and an ordered task sequence. Order is
// semantically meaningful — implicit edges follow document order.
type Document struct {
	Namespace string
	Name      string
	Version   string

	Input  string // input.from at the workflow level, empty if absent
	Output string // output.as at the workflow level, empty if absent

	Use Use

	Do []Entry
}

// FullName returns the "namespace/name/version" triple used as the registry
// key for Run.workflow resolution.
func (d Document) FullName() string {
	return d.Namespace + "/" + d.Name + "/" + d.Version
}

// Use holds the named function definitions and catalog endpoints available
// to Call tasks within the enclosing document.
type Use struct {
	// Functions maps a user-defined function name to the task sequence that
	// implements it. Resolved before any catalog or built-in lookup.
	Functions map[string]Entry

	// Catalog lists named external catalog endpoints in declaration order.
	// Call references of the form "name:version" resolve against the first
	// catalog endpoint (per the one-catalog-wins rule carried from the
	// original implementation's function resolution grammar).
	Catalog []CatalogEndpoint
}

// CatalogEndpoint names a remote function catalog base URL.
type CatalogEndpoint struct {
	Name     string
	Endpoint string
}

// Entry pairs a task name, unique within its enclosing sequence, with its
// definition.
type Entry struct {
	Name string
	Task Task
}

// Task is the tagged-union interface implemented by all 12 task kinds.
type Task interface {
	Kind() Kind
	Common() *Common
}

// Common holds the fields shared by every task kind: input/output/export
// filters, the if-gate, the next-task directive, and the per-task timeout.
type Common struct {
	InputFrom string // input.from: pre-filter expression, evaluated against data
	OutputAs  string // output.as: post-filter expression, evaluated against the handler result
	ExportAs  string // export.as: context-replacing expression, evaluated against the filtered result

	If string // gating expression; task is skipped (treated as no-op) when false

	// Then names the next task, or one of the control directives "end" /
	// "exit". Empty means "no explicit transition" (implicit edge applies).
	Then string

	Timeout Duration // zero value means "no timeout"
}

// HasTimeout reports whether a per-task timeout was configured.
func (c Common) HasTimeout() bool { return c.Timeout > 0 }

// IsControlDirective reports whether s is "end" or "exit" rather than a task
// name.
func IsControlDirective(s string) bool { return s == "end" || s == "exit" }
