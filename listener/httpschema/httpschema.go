// Package httpschema implements the HTTP-with-schema transport for the
// Listen task's "http" protocol (spec §4.7): one net/http server per bind
// address, one chi route per (bind_address, schema_path) group, validated
// against an OpenAPI document loaded from schema_path at registration
// time so a malformed schema fails fast instead of on the first request.
//
// Grounded on the pack's chi usage for HTTP routing and kin-openapi for
// schema loading/validation; request dispatch hands off to a shared
// listener.Registry the same way every transport in this subsystem does.
package httpschema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/problem"
	"github.com/durableflow/engine/telemetry"
	"github.com/durableflow/engine/workflow"
)

type boundServer struct {
	router *chi.Mux
	http   *http.Server
}

// Server owns every HTTP-with-schema endpoint a host process has started,
// keyed by bind address so multiple schema paths on the same address
// share one net/http.Server and chi router.
type Server struct {
	mu       sync.Mutex
	registry *listener.Registry
	logger   telemetry.Logger
	servers  map[string]*boundServer
}

// New returns a Server that dispatches inbound requests through registry.
func New(registry *listener.Registry, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{registry: registry, logger: logger, servers: make(map[string]*boundServer)}
}

// Register loads and validates target.SchemaPath, then routes POST
// requests under its schema path to the shared registry, starting
// target.BindAddress's HTTP server on first use. Calling Register again
// for the same (bind_address, schema_path) is a no-op: chi.Mux.Post
// replacing a route on every call would otherwise stack duplicate
// middleware wrappers as more Listen tasks declare the same target.
func (s *Server) Register(target workflow.ListenTarget) error {
	doc, err := openapi3.NewLoader().LoadFromFile(target.SchemaPath)
	if err != nil {
		return fmt.Errorf("listener/httpschema: loading schema %q: %w", target.SchemaPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return fmt.Errorf("listener/httpschema: invalid schema %q: %w", target.SchemaPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bs, ok := s.servers[target.BindAddress]
	if !ok {
		router := chi.NewRouter()
		bs = &boundServer{
			router: router,
			http:   &http.Server{Addr: target.BindAddress, Handler: router},
		}
		s.servers[target.BindAddress] = bs
		go func() {
			if err := bs.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error(context.Background(), "listener/httpschema: server exited",
					"bind_address", target.BindAddress, "error", err.Error())
			}
		}()
	}

	key := listener.KeyFor(target)
	route := routePath(target.SchemaPath)
	if bs.router.Match(chi.NewRouteContext(), http.MethodPost, route) {
		return nil
	}
	bs.router.Post(route, s.handler(key))
	return nil
}

func (s *Server) handler(key listener.Key) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeProblem(w, problem.New(problem.KindValidation, http.StatusBadRequest,
				"Invalid request body", err.Error(), r.URL.Path))
			return
		}

		out, err := s.registry.Dispatch(r.Context(), key, payload)
		if err != nil {
			writeProblem(w, problem.Wrap(err, problem.KindInternal, r.URL.Path))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func writeProblem(w http.ResponseWriter, p *problem.Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	status := p.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func routePath(schemaPath string) string {
	if schemaPath == "" || schemaPath[0] != '/' {
		return "/" + schemaPath
	}
	return schemaPath
}

// Shutdown gracefully stops every HTTP server this Server has started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for addr, bs := range s.servers {
		if err := bs.http.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("listener/httpschema: shutting down %q: %w", addr, err)
		}
	}
	return firstErr
}
