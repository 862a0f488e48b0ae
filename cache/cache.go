// Package cache implements the idempotent task cache contract (C2):
// content-addressed memoization keyed by task name and a hash of the
// task's evaluated, user-visible inputs. Modeled on the Store/ErrNotFound
// shape used by the teacher's registry store contract, generalized from
// tool specs to generic cache entries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/durableflow/engine/execctx"
)

// ErrNotFound is returned by Get when no entry exists for the given key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is "(key, inputs, output, timestamp)" per spec §3.
type Entry struct {
	Key       string
	Inputs    map[string]any
	Output    any
	Timestamp time.Time
}

// Store is the cache persistence contract (§4.6). Implementations must be
// safe for concurrent use across instances.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error) // ErrNotFound on miss
	Set(ctx context.Context, e *Entry) error              // upsert by key
	Invalidate(ctx context.Context, key string) error
}

// Key computes the cache key "<task_name>:<hex_hash(canonical_json(inputs))>"
// per spec §4.6. inputs must already be the fully evaluated `with`
// parameters; reserved __-prefixed keys are stripped before hashing (I4),
// so injected descriptors never affect the key.
func Key(taskName string, inputs map[string]any) (string, error) {
	stripped := execctx.StripReserved(inputs)
	canonical, err := canonicalJSON(stripped)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize inputs for %q: %w", taskName, err)
	}
	sum := xxhash.Sum64(append([]byte(taskName+":"), canonical...))
	return fmt.Sprintf("%s:%016x", taskName, sum), nil
}

// canonicalJSON serializes v deterministically: object keys are sorted at
// every level so the same logical value always hashes to the same bytes
// regardless of map iteration order.
func canonicalJSON(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]canonicalEntry, 0, len(keys))
		for _, k := range keys {
			nv, err := normalize(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, canonicalEntry{Key: k, Value: nv})
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			nv, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return val, nil
	}
}

// canonicalEntry renders as a 2-element JSON array so that key ordering
// survives encoding/json's default alphabetical-map-key behavior, which
// would otherwise re-sort already-sorted keys identically anyway but loses
// the explicit ordering guarantee if this type ever stops being a slice.
type canonicalEntry struct {
	Key   string
	Value any
}

// MarshalJSON renders a canonicalEntry as ["key", value].
func (c canonicalEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Key, c.Value})
}
