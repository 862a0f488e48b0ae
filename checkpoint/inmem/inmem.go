// Package inmem provides an in-memory checkpoint.Store, the same pattern
// runlog/inmem uses for the event log: a mutex-guarded map keyed by
// instance ID, upserted in place.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/durableflow/engine/checkpoint"
)

// Store implements checkpoint.Store in memory.
type Store struct {
	mu          sync.Mutex
	checkpoints map[string]*checkpoint.Checkpoint
}

// New returns a new in-memory checkpoint store.
func New() *Store {
	return &Store{checkpoints: make(map[string]*checkpoint.Checkpoint)}
}

var _ checkpoint.Store = (*Store)(nil)

// Save implements checkpoint.Store.
func (s *Store) Save(_ context.Context, c *checkpoint.Checkpoint) error {
	if c == nil || c.InstanceID == "" {
		return fmt.Errorf("checkpoint/inmem: instance_id is required")
	}
	cp := *c
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	data := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	cp.Data = data

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[c.InstanceID] = &cp
	return nil
}

// Load implements checkpoint.Store.
func (s *Store) Load(_ context.Context, instanceID string) (*checkpoint.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[instanceID]
	if !ok {
		return nil, false, nil
	}
	clone := *cp
	data := make(map[string]any, len(cp.Data))
	for k, v := range cp.Data {
		data[k] = v
	}
	clone.Data = data
	return &clone, true, nil
}
