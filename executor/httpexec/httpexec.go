// Package httpexec implements the "http" (and "rest") protocol executor:
// an outbound HTTP call whose non-2xx response is an execution-kind
// problem, matchable by Try. Grounded on the original engine's rest.rs
// executor (request construction from evaluated params, status-code
// classification) and adapted to the teacher's context/timeout idiom.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/problem"
)

// Params is the evaluated shape a Call/Run task supplies for the http
// executor.
type Params struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Executor performs the actual HTTP round trip.
type Executor struct {
	Client *http.Client
}

// New returns an Executor using http.DefaultClient unless cli is provided.
func New(cli *http.Client) *Executor {
	if cli == nil {
		cli = http.DefaultClient
	}
	return &Executor{Client: cli}
}

var _ executor.Executor = (*Executor)(nil)

// Exec implements executor.Executor.
func (e *Executor) Exec(ctx context.Context, taskName string, params any, _ executor.Context, streamer executor.Streamer) (any, error) {
	p, err := toParams(params)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	if p.URL == "" {
		return nil, problem.New(problem.KindConfiguration, 400, "missing url", "http executor requires a url", problem.InstancePointer("call", 0, taskName))
	}
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if p.Body != nil {
		raw, err := json.Marshal(p.Body)
		if err != nil {
			return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, bodyReader)
	if err != nil {
		return nil, problem.Wrap(err, problem.KindExecution, problem.InstancePointer("call", 0, taskName))
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if len(p.Query) > 0 {
		q := req.URL.Query()
		for k, v := range p.Query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	if streamer != nil {
		streamer.WriteLine(taskName, "stdout", fmt.Sprintf("%s %s", method, p.URL))
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, problem.New(problem.KindExecution, 502, "http request failed", err.Error(), problem.InstancePointer("call", 0, taskName))
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
		"status":  resp.StatusCode,
		"headers": flattenHeaders(resp.Header),
		"body":    decoded,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, problem.New(problem.KindExecution, resp.StatusCode, "http call returned an error status",
			fmt.Sprintf("%s %s returned %d", method, p.URL, resp.StatusCode),
			problem.InstancePointer("call", 0, taskName))
	}
	return result, nil
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

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
