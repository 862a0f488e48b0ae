// Package grpcexec implements the "grpc" protocol executor: an outbound
// binary-RPC call to a server whose .proto schema isn't compiled into
// this process. Grounded on listener/rpc's own raw-codec technique (this
// engine's RPC transports never compile against a caller's .proto; they
// pass JSON payloads through a forced grpc.Codec instead of a generated
// proto.Message), mirrored here on the client side so Call/Run can reach
// an arbitrary gRPC method by name.
package grpcexec

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

// Params is the evaluated shape a Call/Run task supplies for the grpc
// executor.
type Params struct {
	// Target is the server address (host:port).
	Target string `json:"target"`
	// Method is the full method name, e.g. "/package.Service/Method".
	Method string `json:"method"`
	// Body is the request payload, marshaled as JSON over the wire
	// (see rawCodec) rather than protobuf, since no compiled message
	// type exists for an arbitrary target server.
	Body any `json:"body,omitempty"`
}

// Executor dials Target fresh per call. Outbound Call targets are
// expected to be numerous and low-volume relative to a single Listen
// endpoint, so unlike listener/rpc's long-lived per-bind-address server,
// there is no connection pool to manage here.
type Executor struct{}

// New returns a grpc Executor.
func New() *Executor { return &Executor{} }

var _ executor.Executor = (*Executor)(nil)

type rawMessage struct{ data []byte }

// rawCodec mirrors listener/rpc's rawCodec: it passes JSON bytes through
// a forced grpc.Codec instead of marshaling a compiled protobuf type,
// registered under its own content-subtype name so it never touches the
// process-wide "proto" codec the Temporal adapter relies on.
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

func (rawCodec) Name() string { return "durableflow-grpcexec-raw" }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// Exec implements executor.Executor.
func (e *Executor) Exec(ctx context.Context, taskName string, params any, _ executor.Context, streamer executor.Streamer) (any, error) {
	p, err := toParams(params)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	if p.Target == "" || p.Method == "" {
		return nil, problem.New(problem.KindConfiguration, 400, "missing target or method",
			"grpc executor requires both target and method", problem.InstancePointer("call", 0, taskName))
	}

	conn, err := grpc.NewClient(p.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	defer conn.Close()

	reqBytes, err := json.Marshal(p.Body)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}

	if streamer != nil {
		streamer.WriteLine(taskName, "stdout", fmt.Sprintf("grpc %s %s", p.Target, p.Method))
	}

	req := &rawMessage{data: reqBytes}
	resp := &rawMessage{}
	if err := conn.Invoke(ctx, p.Method, req, resp, grpc.CallContentSubtype(rawCodec{}.Name())); err != nil {
		return nil, problem.New(problem.KindExecution, 502, "grpc call failed", err.Error(), problem.InstancePointer("call", 0, taskName))
	}

	var decoded any
	if len(resp.data) > 0 {
		if jsonErr := json.Unmarshal(resp.data, &decoded); jsonErr != nil {
			decoded = string(resp.data)
		}
	}
	return decoded, nil
}

func toParams(v any) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Params{}, err
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}
