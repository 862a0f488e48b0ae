package workflow

// SetTask computes and merges key/value pairs into the context. Value is
// either a map[string]any (each entry independently evaluated — strings
// starting with "${" are expressions, other scalars are literal) or a bare
// expression string (evaluated and used to replace the context wholesale).
type SetTask struct {
	CommonFields Common
	Value        any
}

func (t *SetTask) Kind() Kind      { return KindSet }
func (t *SetTask) Common() *Common { return &t.CommonFields }

// CallTask invokes a named or built-in function/protocol. Function
// resolves in this order: use.functions, catalog "name:version" reference,
// built-in protocol name (http, rest, openapi, grpc, python, typescript...).
type CallTask struct {
	CommonFields Common
	Function     string
	With         map[string]any
}

func (t *CallTask) Kind() Kind      { return KindCall }
func (t *CallTask) Common() *Common { return &t.CommonFields }

// DoTask executes an inline ordered sub-sequence. then targets inside the
// sub-sequence resolve against siblings within Do, not the enclosing scope.
type DoTask struct {
	CommonFields Common
	Do           []Entry
}

func (t *DoTask) Kind() Kind      { return KindDo }
func (t *DoTask) Common() *Common { return &t.CommonFields }

// ForTask iterates a sub-sequence over a collection with loop variables.
type ForTask struct {
	CommonFields Common
	In           string // expression evaluated to an array
	Each         string // loop variable name bound to the element, default "each"
	At           string // loop variable name bound to the index, default "index"
	Do           []Entry
}

func (t *ForTask) Kind() Kind      { return KindFor }
func (t *ForTask) Common() *Common { return &t.CommonFields }

// EachVar returns the configured element variable name, defaulting to "each".
func (t *ForTask) EachVar() string {
	if t.Each == "" {
		return "each"
	}
	return t.Each
}

// AtVar returns the configured index variable name, defaulting to "index".
func (t *ForTask) AtVar() string {
	if t.At == "" {
		return "index"
	}
	return t.At
}

// SwitchCase is one guarded branch of a Switch task. An empty When acts as
// an unconditional default.
type SwitchCase struct {
	When string
	Then string // next-task name, or "end"/"exit"
}

// SwitchTask evaluates ordered guarded cases and selects one branch's Then
// as the task's next-task override.
type SwitchTask struct {
	CommonFields Common
	Cases        []SwitchCase
}

func (t *SwitchTask) Kind() Kind      { return KindSwitch }
func (t *SwitchTask) Common() *Common { return &t.CommonFields }

// ForkBranch is one named branch of a Fork task. A non-compete join checks
// branch errors in authored order regardless of completion order; its
// merged result is a map keyed by branch name, which carries no branch
// order.
type ForkBranch struct {
	Name string
	Do   []Entry
}

// ForkTask executes named branches in parallel. Compete mode returns the
// first-completing branch's result and cancels the rest; join mode waits
// for all and merges {branch_name: result}.
type ForkTask struct {
	CommonFields Common
	Compete      bool
	Branches     []ForkBranch
}

func (t *ForkTask) Kind() Kind      { return KindFork }
func (t *ForkTask) Common() *Common { return &t.CommonFields }

// ErrorMatch is the catch predicate: every key/value pair must equal the
// corresponding field on the raised, normalized Problem.
type ErrorMatch struct {
	With map[string]any
}

// Catch is the recovery clause of a Try task.
type Catch struct {
	Errors ErrorMatch
	As     string // context key the matched error is bound to; default "error"
	Do     []Entry
}

// AsVar returns the configured error-binding variable name, defaulting to
// "error".
func (c Catch) AsVar() string {
	if c.As == "" {
		return "error"
	}
	return c.As
}

// TryTask executes a sub-sequence; on error, optionally matches and runs a
// recovery sub-sequence.
type TryTask struct {
	CommonFields Common
	Try          []Entry
	Catch        *Catch
}

func (t *TryTask) Kind() Kind      { return KindTry }
func (t *TryTask) Common() *Common { return &t.CommonFields }

// RaiseTask produces a structured (RFC 7807-shaped) error.
type RaiseTask struct {
	CommonFields Common
	Type         string
	Status       int
	Title        string
	Detail       string // expression or literal detail message
}

func (t *RaiseTask) Kind() Kind      { return KindRaise }
func (t *RaiseTask) Common() *Common { return &t.CommonFields }

// WaitTask sleeps for a duration (ISO-8601 restricted subset or inline
// object) and returns an empty object.
type WaitTask struct {
	CommonFields Common
	Duration     Duration
}

func (t *WaitTask) Kind() Kind      { return KindWait }
func (t *WaitTask) Common() *Common { return &t.CommonFields }

// RunKind distinguishes the four Run shapes.
type RunKind string

const (
	RunWorkflow RunKind = "workflow"
	RunScript   RunKind = "script"
	RunShell    RunKind = "shell"
	RunContainer RunKind = "container"
)

// RunWorkflowSpec resolves and recursively executes a registered workflow.
type RunWorkflowSpec struct {
	Namespace string
	Name      string
	Version   string
	Input     map[string]any
	Await     bool // true waits for the nested run; the zero value (false) starts it and does not wait
}

// RunScriptSpec executes inline or fetched code via a code-runtime executor.
type RunScriptSpec struct {
	Code      string // inline source
	Source    string // URI to fetch source from, when Code is empty
	Language  string // "python", "typescript", ...
	Arguments map[string]any
}

// RunShellSpec spawns a subprocess.
type RunShellSpec struct {
	Command   string
	Arguments []string
}

// RunTask executes an external unit: sub-workflow, script, container, or
// shell. Exactly one of the typed specs is populated per Which.
type RunTask struct {
	CommonFields Common
	Which        RunKind
	Workflow     *RunWorkflowSpec
	Script       *RunScriptSpec
	Shell        *RunShellSpec
}

func (t *RunTask) Kind() Kind      { return KindRun }
func (t *RunTask) Common() *Common { return &t.CommonFields }

// EmitTask produces a CloudEvents-shaped event merged into context.
type EmitTask struct {
	CommonFields Common
	With         map[string]any
}

func (t *EmitTask) Kind() Kind      { return KindEmit }
func (t *EmitTask) Common() *Common { return &t.CommonFields }

// ReadMode controls what part of an inbound message a Listen handler
// receives.
type ReadMode string

const (
	ReadEnvelope ReadMode = "envelope" // default: whole envelope
	ReadData     ReadMode = "data"     // CloudEvents "data" field only
	ReadRaw      ReadMode = "raw"      // handled as envelope: the listener transports decode the body before dispatch
)

// ListenProtocol names the transport a Listen task binds to.
type ListenProtocol string

const (
	ListenHTTPSchema ListenProtocol = "http"
	ListenRPC         ListenProtocol = "rpc"
)

// ListenTarget describes the inbound endpoint a Listen task declares.
type ListenTarget struct {
	Protocol    ListenProtocol
	BindAddress string
	SchemaPath  string
	ServiceName string // binary-RPC only: the service to bind within the schema
}

// ListenTask declares an inbound endpoint; Do is the per-message handler
// sub-sequence (conventionally a single Call task).
type ListenTask struct {
	CommonFields Common
	To           ListenTarget
	Read         ReadMode
	Do           []Entry
}

func (t *ListenTask) Kind() Kind      { return KindListen }
func (t *ListenTask) Common() *Common { return &t.CommonFields }
