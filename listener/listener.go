// Package listener implements the inbound-endpoint subsystem (C9, spec
// §4.7): the in-process rendezvous between a transport (HTTP-with-schema
// or binary RPC) receiving an external message and a Listen task blocked
// waiting for one. listener/httpschema and listener/rpc own the actual
// network servers; this package owns the request/response handoff they
// both dispatch through.
//
// Grounded on the teacher's runtime/agent/hooks.Bus: the same mutex-
// guarded, map-of-subscribers bookkeeping, but generalized from Bus's
// one-event-to-many-subscribers broadcast to a one-request-to-one-waiter
// rendezvous, since consuming a Listen message (running its Do
// sub-sequence and replying to the caller) is fundamentally a consume-once
// operation, not an observe-only notification.
package listener

import (
	"context"
	"sync"

	"github.com/durableflow/engine/kinds"
	"github.com/durableflow/engine/workflow"
)

// Key groups Listen targets that share one physical endpoint. HTTP-schema
// targets group by (bind_address, schema_path); binary-RPC targets
// additionally group by service_name, since one RPC bind address can host
// more than one service definition within the same schema.
type Key struct {
	BindAddress string
	SchemaPath  string
	ServiceName string
}

// KeyFor derives a Key from a ListenTarget per the grouping rule above.
func KeyFor(t workflow.ListenTarget) Key {
	if t.Protocol == workflow.ListenRPC {
		return Key{BindAddress: t.BindAddress, SchemaPath: t.SchemaPath, ServiceName: t.ServiceName}
	}
	return Key{BindAddress: t.BindAddress, SchemaPath: t.SchemaPath}
}

type rendezvousResult struct {
	value any
	err   error
}

type pendingMessage struct {
	payload map[string]any
	reply   chan rendezvousResult
}

type group struct {
	ch chan *pendingMessage
}

// Registry is the shared rendezvous point wired into kinds.Deps.Listener.
// One Registry is shared by every server a host process starts, since a
// Listen task and the transport serving it may be registered by two
// different packages (httpschema, rpc) against the same Registry.
type Registry struct {
	mu     sync.Mutex
	groups map[Key]*group
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{groups: make(map[Key]*group)}
}

func (r *Registry) groupFor(key Key) *group {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[key]
	if !ok {
		g = &group{ch: make(chan *pendingMessage)}
		r.groups[key] = g
	}
	return g
}

// Await implements kinds.ListenAwaiter: it blocks until a transport calls
// Dispatch for target's group, or ctx is cancelled. The returned message's
// Respond callback must be called exactly once by the caller (normally
// after running the Listen task's Do sub-sequence) so the transport can
// reply to whoever sent the original request.
func (r *Registry) Await(ctx context.Context, target workflow.ListenTarget, mode workflow.ReadMode) (*kinds.ListenMessage, error) {
	g := r.groupFor(KeyFor(target))
	select {
	case pm := <-g.ch:
		shaped, err := shape(pm.payload, mode)
		if err != nil {
			pm.reply <- rendezvousResult{err: err}
			return nil, err
		}
		return &kinds.ListenMessage{
			Data: shaped,
			Respond: func(value any, err error) {
				pm.reply <- rendezvousResult{value: value, err: err}
			},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch is called by a transport (httpschema, rpc) when an inbound
// message arrives for key. It blocks until a Listen task calls Await for
// the same key and replies, or ctx is cancelled — the transport handler
// is expected to hold the client connection open for the duration, the
// same request/response shape an ordinary synchronous HTTP or RPC handler
// has.
func (r *Registry) Dispatch(ctx context.Context, key Key, payload map[string]any) (any, error) {
	g := r.groupFor(key)
	reply := make(chan rendezvousResult, 1)
	pm := &pendingMessage{payload: payload, reply: reply}
	select {
	case g.ch <- pm:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shape applies the Read mode a Listen task declared: envelope (default)
// passes the decoded body through unchanged, data extracts the CloudEvents
// "data" field, and raw is treated the same as envelope here since both
// httpschema and rpc already decode the wire message into a map before
// calling Dispatch (spec §4.7 doesn't require preserving undecoded bytes
// for a schema-validated HTTP or RPC transport, only for transports with
// no declared schema, which this engine doesn't expose a Listen protocol
// for).
func shape(payload map[string]any, mode workflow.ReadMode) (map[string]any, error) {
	switch mode {
	case workflow.ReadData:
		if d, ok := payload["data"].(map[string]any); ok {
			return d, nil
		}
		return map[string]any{}, nil
	default:
		return payload, nil
	}
}

var _ kinds.ListenAwaiter = (*Registry)(nil)
