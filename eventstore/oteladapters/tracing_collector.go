package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// TracingCollector implements eventstore.TracingCollector on an OpenTelemetry tracer.
// Spans started through it become children of whatever span ctx already carries.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector that starts spans with tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan implements eventstore.TracingCollector.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan implements eventstore.TracingCollector. Span contexts from other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	otelSpan, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	otelSpan.span.SetAttributes(toAttributes(attrs)...)
	otelSpan.SetStatus(status)
	otelSpan.span.End()
}

var _ eventstore.TracingCollector = (*TracingCollector)(nil)

// SpanContext wraps an OpenTelemetry span as eventstore.SpanContext.
type SpanContext struct {
	span trace.Span
}

// SetStatus maps the status strings the stream controller and engines use to span status codes.
// Anything else is kept as a "status" attribute.
func (s *SpanContext) SetStatus(status string) {
	switch status {
	case "success", "ok":
		s.span.SetStatus(codes.Ok, "")
	case "error":
		s.span.SetStatus(codes.Error, "operation failed")
	case "wrong_expected_version", "conflict":
		s.span.SetStatus(codes.Error, "wrong expected version")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	case "timeout":
		s.span.SetStatus(codes.Error, "operation timed out")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute implements eventstore.SpanContext.
func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// Span exposes the wrapped span.
func (s *SpanContext) Span() trace.Span {
	return s.span
}

var _ eventstore.SpanContext = (*SpanContext)(nil)
