// Package catalog is the in-process workflow document registry shared
// between the durableflow facade and the dispatch kernel: Call's
// catalog-function references and Run.workflow both need to resolve a
// (namespace, name, version) triple to a *workflow.Document (via
// kinds.WorkflowResolver), and durableflow.Engine needs the same lookup
// to start a top-level instance — so both hold the same Registry instead
// of keeping independent copies that could drift.
//
// Modeled on the teacher's registry package (a mutex-guarded map keyed by
// identity, read far more often than written), generalized from tool
// specs to workflow documents.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/durableflow/engine/kinds"
	"github.com/durableflow/engine/workflow"
)

// Registry resolves workflow documents by (namespace, name, version).
// Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*workflow.Document
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{docs: make(map[string]*workflow.Document)}
}

func key(namespace, name, version string) string {
	return namespace + "/" + name + "/" + version
}

// Register adds or replaces doc under its own (Namespace, Name, Version).
func (r *Registry) Register(doc workflow.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.FullName()] = &doc
}

// Lookup returns the registered document for the identity triple, and
// false if none is registered.
func (r *Registry) Lookup(namespace, name, version string) (*workflow.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[key(namespace, name, version)]
	return doc, ok
}

// All returns every currently registered document, in no particular
// order. Used at startup to discover Listen task targets across the
// whole catalog.
func (r *Registry) All() []*workflow.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]*workflow.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	return docs
}

// Resolve implements kinds.WorkflowResolver.
func (r *Registry) Resolve(_ context.Context, namespace, name, version string) (*workflow.Document, error) {
	doc, ok := r.Lookup(namespace, name, version)
	if !ok {
		return nil, fmt.Errorf("catalog: no workflow registered for %s/%s/%s", namespace, name, version)
	}
	return doc, nil
}

var _ kinds.WorkflowResolver = (*Registry)(nil)
