// Package problem defines the RFC 7807-shaped structured error that flows
// through Raise tasks, Try/catch matching, and workflow failure events.
// Grounded on spec §7 (raised-error shape) and on the taxonomy the engine
// distinguishes at each layer (validation, configuration, expression,
// execution, timeout, cancellation, internal).
package problem

import (
	"encoding/json"
	"fmt"
)

// Kind is the engine's internal error taxonomy. It is distinct from the
// wire-level "type" URI: Kind drives recovery policy (fatal vs. matchable
// by Try), Type is the RFC 7807 identifier carried on the wire.
type Kind string

const (
	KindValidation   Kind = "validation"   // graph/structure issues; fatal at build time
	KindConfiguration Kind = "configuration" // missing function, bad URI; fatal at execute time
	KindExpression   Kind = "expression"   // evaluator failures; surfaces as task failure
	KindExecution    Kind = "execution"    // executor-reported failure; matchable by Try
	KindTimeout      Kind = "timeout"      // deadline elapsed; matchable by Try
	KindCancellation Kind = "cancellation" // cancel signal observed; non-recoverable
	KindInternal     Kind = "internal"     // engine bug, persistence failure
)

// Problem is the RFC 7807 "problem details" shape every error a Try may
// catch is normalized to.
type Problem struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Kind is engine-internal and not part of the RFC 7807 wire shape, but
	// is carried alongside it so callers can classify without re-parsing
	// Type. Omitted from JSON so the wire format matches RFC 7807 exactly.
	Kind Kind `json:"-"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// defaultType returns the about:blank-style URI used when a Raise task or
// an executor does not supply one.
func defaultType(kind Kind) string {
	return "https://durableflow.dev/problems/" + string(kind)
}

// New constructs a Problem with the given taxonomy kind, HTTP-style status,
// title and detail. instance is the JSON-pointer-like task path, e.g.
// "/do/3/charge-card".
func New(kind Kind, status int, title, detail, instance string) *Problem {
	return &Problem{
		Type:     defaultType(kind),
		Status:   status,
		Title:    title,
		Detail:   detail,
		Instance: instance,
		Kind:     kind,
	}
}

// InstancePointer builds the JSON-pointer-like instance path for a task at
// position index within the sequence named by scope (e.g. "do" for the
// top-level document, or the enclosing task's name for nested scopes).
func InstancePointer(scope string, index int, taskName string) string {
	return fmt.Sprintf("/%s/%d/%s", scope, index, taskName)
}

// Wrap normalizes an arbitrary error into a Problem. If err is already a
// *Problem, it is returned unchanged. If the error's message parses as a
// JSON object matching the Problem shape, that shape is used. Otherwise a
// default {type, status: 500, title, detail, instance} wrapper is
// synthesized, per spec §4.4 (Try) and §7.
func Wrap(err error, kind Kind, instance string) *Problem {
	if err == nil {
		return nil
	}
	if p, ok := err.(*Problem); ok {
		return p
	}
	var candidate Problem
	if jsonErr := json.Unmarshal([]byte(err.Error()), &candidate); jsonErr == nil && candidate.Title != "" {
		if candidate.Instance == "" {
			candidate.Instance = instance
		}
		if candidate.Kind == "" {
			candidate.Kind = kind
		}
		return &candidate
	}
	return New(kind, 500, "Internal Error", err.Error(), instance)
}

// Matches reports whether every key/value pair in with equals the
// corresponding field on p, per the Try/catch matching rule (§4.4). Only
// the well-known RFC 7807 field names are matchable: type, status, title,
// detail, instance.
func (p *Problem) Matches(with map[string]any) bool {
	if p == nil {
		return false
	}
	for k, v := range with {
		var actual any
		switch k {
		case "type":
			actual = p.Type
		case "status":
			actual = p.Status
		case "title":
			actual = p.Title
		case "detail":
			actual = p.Detail
		case "instance":
			actual = p.Instance
		default:
			return false
		}
		if !equalLoose(actual, v) {
			return false
		}
	}
	return true
}

// equalLoose compares values the way a jq-like filter would: numeric types
// compare by float64 value so YAML-parsed ints and JSON-decoded floats
// match each other.
func equalLoose(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
