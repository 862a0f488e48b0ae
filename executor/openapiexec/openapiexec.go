// Package openapiexec implements the "openapi" protocol executor: an
// outbound HTTP call whose request body is validated against an OpenAPI
// operation before it is sent, and whose schema document is loaded once
// per schema path and cached for the life of the process.
//
// Grounded on listener/httpschema's use of github.com/getkin/kin-openapi
// for schema loading (the same library, the inbound half of this
// engine's OpenAPI surface); this package is its outbound counterpart,
// validating a Call's evaluated parameters against the use.catalogs
// document named by the task instead of validating an inbound request.
package openapiexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

// Params is the evaluated shape a Call/Run task supplies for the openapi
// executor.
type Params struct {
	// SchemaPath is the OpenAPI document to validate and route against.
	SchemaPath string `json:"schema_path"`
	// BaseURL overrides the schema's own server URL, if set.
	BaseURL string            `json:"base_url,omitempty"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Executor performs the HTTP round trip after validating Body against
// the named operation's request schema.
type Executor struct {
	Client *http.Client

	mu   sync.Mutex
	docs map[string]*openapi3.T
}

// New returns an Executor using http.DefaultClient unless cli is provided.
func New(cli *http.Client) *Executor {
	if cli == nil {
		cli = http.DefaultClient
	}
	return &Executor{Client: cli, docs: make(map[string]*openapi3.T)}
}

var _ executor.Executor = (*Executor)(nil)

// Exec implements executor.Executor.
func (e *Executor) Exec(ctx context.Context, taskName string, params any, _ executor.Context, streamer executor.Streamer) (any, error) {
	p, err := toParams(params)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	if p.SchemaPath == "" || p.Method == "" || p.Path == "" {
		return nil, problem.New(problem.KindConfiguration, 400, "missing schema_path, method, or path",
			"openapi executor requires schema_path, method, and path", problem.InstancePointer("call", 0, taskName))
	}

	doc, err := e.docFor(p.SchemaPath)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindConfiguration, problem.InstancePointer("call", 0, taskName))
	}

	pathItem := doc.Paths.Find(p.Path)
	if pathItem == nil {
		return nil, problem.New(problem.KindValidation, 400, "unknown operation path",
			fmt.Sprintf("schema %q has no path %q", p.SchemaPath, p.Path), problem.InstancePointer("call", 0, taskName))
	}
	method := strings.ToUpper(p.Method)
	operation := pathItem.GetOperation(method)
	if operation == nil {
		return nil, problem.New(problem.KindValidation, 400, "unknown operation method",
			fmt.Sprintf("schema %q path %q has no %s operation", p.SchemaPath, p.Path, method), problem.InstancePointer("call", 0, taskName))
	}

	baseURL := p.BaseURL
	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}

	var bodyReader io.Reader
	var bodyRaw []byte
	if p.Body != nil {
		bodyRaw, err = json.Marshal(p.Body)
		if err != nil {
			return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
		}
		bodyReader = bytes.NewReader(bodyRaw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, joinURL(baseURL, p.Path), bodyReader)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(p.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range p.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	if operation.RequestBody != nil {
		validationReq, err := http.NewRequest(method, joinURL(baseURL, p.Path), bytes.NewReader(bodyRaw))
		if err != nil {
			return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
		}
		validationReq.Header.Set("Content-Type", "application/json")
		input := &openapi3filter.RequestValidationInput{
			Request: validationReq,
			Route: &routers.Route{
				Spec:      doc,
				Path:      p.Path,
				PathItem:  pathItem,
				Method:    method,
				Operation: operation,
			},
		}
		if err := openapi3filter.ValidateRequestBody(ctx, input, operation.RequestBody); err != nil {
			return nil, problem.New(problem.KindValidation, 400, "request body failed schema validation",
				err.Error(), problem.InstancePointer("call", 0, taskName))
		}
	}

	if streamer != nil {
		streamer.WriteLine(taskName, "stdout", fmt.Sprintf("%s %s", method, httpReq.URL.String()))
	}

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return nil, problem.New(problem.KindExecution, 502, "openapi call failed", err.Error(), problem.InstancePointer("call", 0, taskName))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}

	var decoded any
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil {
			decoded = string(raw)
		}
	}

	result := map[string]any{
		"status": resp.StatusCode,
		"body":   decoded,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, problem.New(problem.KindExecution, resp.StatusCode, "openapi call returned an error status",
			fmt.Sprintf("%s %s returned %d", method, p.Path, resp.StatusCode), problem.InstancePointer("call", 0, taskName))
	}
	return result, nil
}

// docFor loads and caches the OpenAPI document at schemaPath, validating
// it once at load time so a malformed schema fails on first use rather
// than silently skipping validation on every call.
func (e *Executor) docFor(schemaPath string) (*openapi3.T, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc, ok := e.docs[schemaPath]; ok {
		return doc, nil
	}
	doc, err := openapi3.NewLoader().LoadFromFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("openapiexec: loading schema %q: %w", schemaPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapiexec: invalid schema %q: %w", schemaPath, err)
	}
	e.docs[schemaPath] = doc
	return doc, nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
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
