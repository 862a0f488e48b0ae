// Package inmem provides an in-memory cache.Store.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/durableflow/engine/cache"
)

// Store implements cache.Store in memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*cache.Entry
}

// New returns a new in-memory cache store.
func New() *Store {
	return &Store{entries: make(map[string]*cache.Entry)}
}

var _ cache.Store = (*Store)(nil)

// Get implements cache.Store.
func (s *Store) Get(_ context.Context, key string) (*cache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

// Set implements cache.Store.
func (s *Store) Set(_ context.Context, e *cache.Entry) error {
	clone := *e
	if clone.Timestamp.IsZero() {
		clone.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = &clone
	return nil
}

// Invalidate implements cache.Store.
func (s *Store) Invalidate(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
