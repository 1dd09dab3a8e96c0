package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/oteladapters"
)

func givenTracingCollector(t *testing.T) (*oteladapters.TracingCollector, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter, provider
}

func spanAttribute(span tracetest.SpanStub, key string) (string, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_StartAndFinishSpan_ExportsNameAndAttributes(t *testing.T) {
	// setup
	collector, exporter, _ := givenTracingCollector(t)

	// act
	_, span := collector.StartSpan(context.Background(), "streamcontroller.append", map[string]string{
		"stream_name":      "orders-42",
		"expected_version": "3",
	})
	span.AddAttribute("event_count", "2")
	collector.FinishSpan(span, "success", map[string]string{"stream_version": "5"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "streamcontroller.append", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	for key, expected := range map[string]string{
		"stream_name":      "orders-42",
		"expected_version": "3",
		"event_count":      "2",
		"stream_version":   "5",
	} {
		value, found := spanAttribute(spans[0], key)
		assert.True(t, found, "attribute %s", key)
		assert.Equal(t, expected, value, "attribute %s", key)
	}
}

func Test_TracingCollector_FinishSpan_MapsStatusToCode(t *testing.T) {
	testCases := []struct {
		status      string
		code        codes.Code
		description string
	}{
		{status: "success", code: codes.Ok},
		{status: "error", code: codes.Error, description: "operation failed"},
		{status: "wrong_expected_version", code: codes.Error, description: "wrong expected version"},
		{status: "canceled", code: codes.Error, description: "operation canceled"},
		{status: "timeout", code: codes.Error, description: "operation timed out"},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			// setup
			collector, exporter, _ := givenTracingCollector(t)

			// act
			_, span := collector.StartSpan(context.Background(), "streamcontroller.read", nil)
			collector.FinishSpan(span, tc.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.code, spans[0].Status.Code)
			assert.Equal(t, tc.description, spans[0].Status.Description)
		})
	}
}

func Test_TracingCollector_FinishSpan_When_StatusIsUnknown_ItIsKeptAsAttribute(t *testing.T) {
	// setup
	collector, exporter, _ := givenTracingCollector(t)

	// act
	_, span := collector.StartSpan(context.Background(), "streamcontroller.subscribe", nil)
	collector.FinishSpan(span, "skipped", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("status", "skipped"))
}

func Test_TracingCollector_StartSpan_When_ContextCarriesASpan_ItStartsAChild(t *testing.T) {
	// setup
	collector, exporter, provider := givenTracingCollector(t)
	parentCtx, parent := provider.Tracer("caller").Start(context.Background(), "handle command")

	// act
	_, span := collector.StartSpan(parentCtx, "streamcontroller.append", nil)
	collector.FinishSpan(span, "success", nil)
	parent.End()

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "streamcontroller.append", spans[0].Name)
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

type foreignSpan struct{}

func (foreignSpan) SetStatus(string)            {}
func (foreignSpan) AddAttribute(string, string) {}

func Test_TracingCollector_FinishSpan_When_SpanIsForeign_ItIsIgnored(t *testing.T) {
	// setup
	collector, exporter, _ := givenTracingCollector(t)

	// act
	assert.NotPanics(t, func() {
		collector.FinishSpan(foreignSpan{}, "success", nil)
	})

	// assert
	assert.Empty(t, exporter.GetSpans())
}
