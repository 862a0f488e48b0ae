// Package telemetry defines the Logger/Metrics/Tracer ambient-stack
// contracts used throughout the engine, plus no-op and zap/OTEL-backed
// implementations. Grounded on the teacher's runtime/agent/telemetry
// package (same method shapes), with the clue-backed logger replaced by
// go.uber.org/zap — clue itself is the teacher's own DSL-bootstrap sugar
// and is not carried forward (see DESIGN.md).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger emits structured log messages with key-value pairs, in the
// (key1, value1, key2, value2, ...) convention.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics records counters, timers, and gauges tagged by (key, value, ...)
// string pairs.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Span is a single trace span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Tracer starts and retrieves spans.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}
