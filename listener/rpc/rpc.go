// Package rpc implements the binary-RPC transport for the Listen task's
// "rpc" protocol (spec §4.7, §6.3): one reflection-enabled gRPC server per
// bind address, dispatching every inbound call — regardless of the
// method name a client declares — to the shared listener.Registry keyed
// by (bind_address, schema_path, service_name).
//
// The schema a Listen task names describes the service to callers outside
// this engine (a .proto file, published for client codegen); the server
// itself never compiles against it, so it accepts the call's raw wire
// bytes via a forced codec instead of a generated proto.Message type, the
// same technique general-purpose gRPC proxies use to front services whose
// message types aren't known at compile time. Payload bytes are JSON, not
// protobuf: callers speak this engine's wire contract, not a third-party
// one, so there is no real schema-driven protobuf marshaling here — see
// DESIGN.md for why.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/telemetry"
	"github.com/durableflow/engine/workflow"
)

// rawMessage carries an RPC call's body as opaque bytes, letting rawCodec
// pass them through to/from JSON without a compiled protobuf type.
type rawMessage struct{ data []byte }

// rawCodec is forced onto every server this package starts via
// grpc.ForceServerCodec, so it governs only these servers' own wire
// decoding and never touches the process-wide "proto" codec registry
// other gRPC clients/servers (e.g. the Temporal adapter) rely on.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(*rawMessage); ok {
		return m.data, nil
	}
	return json.Marshal(v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(*rawMessage); ok {
		m.data = append([]byte(nil), data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

func (rawCodec) Name() string { return "durableflow-raw" }

// Registered under its own content-subtype name, never "proto", so this
// has no effect on any other gRPC client or server sharing the process
// (notably the Temporal adapter, which needs the real protobuf codec for
// its own traffic). A client wanting to call a durableflow RPC listener
// selects this encoding with grpc.CallContentSubtype("durableflow-raw").
func init() {
	encoding.RegisterCodec(rawCodec{})
}

// Server owns every binary-RPC endpoint a host process has started, one
// gRPC server per bind address.
type Server struct {
	mu       sync.Mutex
	registry *listener.Registry
	logger   telemetry.Logger
	servers  map[string]*grpc.Server
}

// New returns a Server that dispatches inbound calls through registry.
func New(registry *listener.Registry, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{registry: registry, logger: logger, servers: make(map[string]*grpc.Server)}
}

// Register starts target.BindAddress's gRPC server if it isn't already
// running. One server answers every call on a bind address and dispatches
// it under the listener.KeyFor key of the first target registered there;
// a later target on the same bind address with a different schema_path or
// service_name is not started again and receives no calls of its own. The
// server has no compiled descriptors to register services against.
func (s *Server) Register(target workflow.ListenTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.servers[target.BindAddress]; ok {
		return nil
	}

	key := listener.KeyFor(target)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.proxy(key)),
	)
	// Reflection has no real service descriptors to list here, since
	// UnknownServiceHandler intercepts calls before any ServiceDesc is
	// registered — it's wired so clients that probe via reflection at
	// least get a response instead of Unimplemented, not so they can
	// enumerate methods. TODO: register a synthesized ServiceDesc built
	// from the schema at target.SchemaPath once grpc-go exposes a stable
	// dynamic-descriptor registration path for UnknownServiceHandler
	// servers.
	reflection.Register(srv)

	lis, err := net.Listen("tcp", target.BindAddress)
	if err != nil {
		return fmt.Errorf("listener/rpc: binding %q: %w", target.BindAddress, err)
	}
	s.servers[target.BindAddress] = srv
	go func() {
		if err := srv.Serve(lis); err != nil {
			s.logger.Error(context.Background(), "listener/rpc: server exited",
				"bind_address", target.BindAddress, "error", err.Error())
		}
	}()
	return nil
}

func (s *Server) proxy(key listener.Key) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(rawMessage)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		var payload map[string]any
		if err := json.Unmarshal(in.data, &payload); err != nil {
			return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
		}

		out, err := s.registry.Dispatch(stream.Context(), key, payload)
		if err != nil {
			return status.Errorf(codes.Internal, "%v", err)
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return status.Errorf(codes.Internal, "encoding response: %v", err)
		}
		return stream.SendMsg(&rawMessage{data: raw})
	}
}

// Shutdown gracefully stops every gRPC server this Server has started.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		srv.GracefulStop()
	}
}
