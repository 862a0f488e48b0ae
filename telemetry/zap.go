package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	// ZapLogger wraps a *zap.SugaredLogger for engine logging.
	ZapLogger struct {
		log *zap.SugaredLogger
	}

	// OtelMetrics wraps an OTEL meter for engine instrumentation.
	OtelMetrics struct {
		meter metric.Meter
	}

	// OtelTracer wraps an OTEL tracer for engine tracing.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewZapLogger constructs a Logger backed by zap. l must be non-nil; a
// production-mode logger covers the common case.
func NewZapLogger(l *zap.Logger) Logger {
	return &ZapLogger{log: l.Sugar()}
}

// NewOtelMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider. Configure it via otel.SetMeterProvider before invoking
// engine methods.
func NewOtelMetrics() Metrics {
	return &OtelMetrics{meter: otel.Meter("github.com/durableflow/engine")}
}

// NewOtelTracer constructs a Tracer backed by the global OTEL
// TracerProvider.
func NewOtelTracer() Tracer {
	return &OtelTracer{tracer: otel.Tracer("github.com/durableflow/engine")}
}

func (l *ZapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.log.Debugw(msg, keyvals...)
}

func (l *ZapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.log.Infow(msg, keyvals...)
}

func (l *ZapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.log.Warnw(msg, keyvals...)
}

func (l *ZapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.log.Errorw(msg, keyvals...)
}

func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *OtelMetrics) RecordGauge(name string, value float64, tags ...string) {
	// OTEL has no synchronous gauge instrument; approximate with a
	// histogram, matching the teacher's ClueMetrics.RecordGauge fallback.
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (t *OtelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &otelSpan{span: span}
}

func (t *OtelTracer) Span(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx)}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *otelSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvToAttrs(attrs)...))
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

// MergeContext returns ctx with the OTEL span from base attached, so spans
// started against the returned context are children of base's span. Used by
// engine adapters to carry the workflow's tracing context into an activity
// invocation without losing the activity context's own cancellation.
func MergeContext(ctx, base context.Context) context.Context {
	if span := trace.SpanFromContext(base); span.SpanContext().IsValid() {
		return trace.ContextWithSpan(ctx, span)
	}
	return ctx
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		k := tags[i]
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		k, _ := keyvals[i].(string)
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, ""))
		}
	}
	return attrs
}
