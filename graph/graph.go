// Package graph compiles a workflow document into a directed graph of task
// vertices with explicit or implicit edges, per spec §4.1 (C5).
package graph

import (
	"fmt"

	"github.com/durableflow/engine/workflow"
)

// Vertex is one compiled node: a task name paired with its definition and
// its outgoing edge, if statically known.
type Vertex struct {
	Name string
	Task workflow.Task

	// Next is the statically known outgoing edge target, or "" if the
	// vertex has no static transition (For, Listen, Raise, Run, Try, Wait,
	// or a Switch case evaluated at runtime). "end"/"exit" are stored as-is
	// and treated as terminal directives by the dispatcher.
	Next string
}

// Graph is the compiled G = (V, E): an ordered vertex list (document order)
// plus a name index.
type Graph struct {
	Vertices []Vertex
	index    map[string]int
}

// Lookup returns the vertex for name and whether it exists.
func (g *Graph) Lookup(name string) (*Vertex, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return &g.Vertices[i], true
}

// First returns the first vertex in document order, or nil if the graph is
// empty.
func (g *Graph) First() *Vertex {
	if len(g.Vertices) == 0 {
		return nil
	}
	return &g.Vertices[0]
}

// staticThen returns the statically known `then` targets for a task, per
// the edge-construction rule in §4.1 step 1.
func staticThen(t workflow.Task) []string {
	switch v := t.(type) {
	case *workflow.CallTask:
		return thenOf(v.CommonFields)
	case *workflow.SetTask:
		return thenOf(v.CommonFields)
	case *workflow.ForkTask:
		return thenOf(v.CommonFields)
	case *workflow.DoTask:
		return thenOf(v.CommonFields)
	case *workflow.EmitTask:
		return thenOf(v.CommonFields)
	case *workflow.SwitchTask:
		var out []string
		for _, c := range v.Cases {
			if c.Then != "" {
				out = append(out, c.Then)
			}
		}
		return out
	default:
		// For, Listen, Raise, Run, Try, Wait: no static transition.
		return nil
	}
}

func thenOf(c workflow.Common) []string {
	if c.Then == "" {
		return nil
	}
	return []string{c.Then}
}

// Build compiles a document into a Graph, applying the explicit-vs-implicit
// edge rule: if any task has an explicit `then` (including a Switch case
// `then`), every edge is explicit and no implicit sequential edges are
// added; otherwise implicit edges connect each task to the next in document
// order.
func Build(doc workflow.Document) (*Graph, error) {
	if len(doc.Do) == 0 {
		return nil, fmt.Errorf("graph: workflow %q has no tasks", doc.FullName())
	}

	g := &Graph{
		Vertices: make([]Vertex, len(doc.Do)),
		index:    make(map[string]int, len(doc.Do)),
	}

	anyExplicit := false
	for i, entry := range doc.Do {
		if entry.Name == "" {
			return nil, fmt.Errorf("graph: task at position %d has no name", i)
		}
		if _, dup := g.index[entry.Name]; dup {
			return nil, fmt.Errorf("graph: duplicate task name %q", entry.Name)
		}
		g.index[entry.Name] = i
		g.Vertices[i] = Vertex{Name: entry.Name, Task: entry.Task}

		if len(staticThen(entry.Task)) > 0 {
			anyExplicit = true
		}
	}

	for i, entry := range doc.Do {
		next := ""
		thens := staticThen(entry.Task)
		switch {
		case anyExplicit && len(thens) > 0:
			// A Switch's per-case thens are resolved dynamically by the
			// kind handler; a single-then task records its one target here.
			if _, isSwitch := entry.Task.(*workflow.SwitchTask); !isSwitch {
				next = thens[0]
			}
		case anyExplicit:
			// Explicit edges exist elsewhere in the graph, but not on this
			// vertex: it has no outgoing edge at all (unreachable unless
			// targeted by another task's then).
		default:
			if i+1 < len(doc.Do) {
				next = doc.Do[i+1].Name
			}
		}
		g.Vertices[i].Next = next
	}

	if err := validate(g, doc); err != nil {
		return nil, err
	}
	return g, nil
}

// validate rejects unknown transition targets. Cycles are permitted.
func validate(g *Graph, doc workflow.Document) error {
	check := func(target string) error {
		if target == "" || workflow.IsControlDirective(target) {
			return nil
		}
		if _, ok := g.index[target]; !ok {
			return fmt.Errorf("graph: task %q's transition target %q does not exist", "?", target)
		}
		return nil
	}
	for _, v := range g.Vertices {
		if err := check(v.Next); err != nil {
			return err
		}
		if sw, ok := v.Task.(*workflow.SwitchTask); ok {
			for _, c := range sw.Cases {
				if err := check(c.Then); err != nil {
					return fmt.Errorf("graph: switch task %q: %w", v.Name, err)
				}
			}
		}
	}
	_ = doc
	return nil
}
