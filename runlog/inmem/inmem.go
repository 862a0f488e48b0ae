// Package inmem provides an in-memory implementation of runlog.Store,
// adapted from the teacher's runtime/agent/runlog/inmem package: the same
// per-instance monotonic sequence counter and cursor-as-last-sequence
// pagination, generalized from per-run to per-workflow-instance events.
package inmem

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/durableflow/engine/runlog"
)

// Store implements runlog.Store in memory. Not durable; intended for tests,
// local development, and the in-memory engine adapter.
type Store struct {
	mu      sync.Mutex
	nextSeq map[string]int64
	events  map[string][]*runlog.Event
}

// New returns a new in-memory event log store.
func New() *Store {
	return &Store{
		nextSeq: make(map[string]int64),
		events:  make(map[string][]*runlog.Event),
	}
}

var _ runlog.Store = (*Store)(nil)

// Append implements runlog.Store.
func (s *Store) Append(_ context.Context, e *runlog.Event) error {
	if e == nil {
		return fmt.Errorf("runlog/inmem: event is required")
	}
	if e.InstanceID == "" {
		return fmt.Errorf("runlog/inmem: instance_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeq[e.InstanceID] + 1
	s.nextSeq[e.InstanceID] = seq

	ev := *e
	ev.Sequence = seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.events[e.InstanceID] = append(s.events[e.InstanceID], &ev)
	e.Sequence = seq
	return nil
}

// List implements runlog.Store.
func (s *Store) List(_ context.Context, instanceID, cursor string, limit int) (runlog.Page, error) {
	if instanceID == "" {
		return runlog.Page{}, fmt.Errorf("runlog/inmem: instance_id is required")
	}
	if limit <= 0 {
		return runlog.Page{}, fmt.Errorf("runlog/inmem: limit must be > 0")
	}

	var after int64
	if cursor != "" {
		id, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return runlog.Page{}, fmt.Errorf("runlog/inmem: invalid cursor %q: %w", cursor, err)
		}
		after = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.events[instanceID]
	if len(all) == 0 {
		return runlog.Page{}, nil
	}

	start := 0
	if after > 0 {
		start = int(after)
		if start >= len(all) {
			return runlog.Page{}, nil
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	events := append([]*runlog.Event(nil), all[start:end]...)
	var next string
	if end < len(all) {
		next = strconv.FormatInt(events[len(events)-1].Sequence, 10)
	}

	return runlog.Page{Events: events, NextCursor: next}, nil
}

// All returns every event for instanceID in sequence order.
func (s *Store) All(ctx context.Context, instanceID string) ([]*runlog.Event, error) {
	s.mu.Lock()
	all := append([]*runlog.Event(nil), s.events[instanceID]...)
	s.mu.Unlock()
	return all, nil
}
