package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/oteladapters"
	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/streamengine"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func Test_StreamController_With_OTelAdapters_ReportsSpansMetricsAndLogs(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	spanExporter := tracetest.NewInMemoryExporter()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	metricReader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	logRecorder := &recordingLogger{}

	store := helper.NewInMemoryStore()
	controller, err := streamengine.NewController(
		helper.GivenUniqueStreamName(t),
		store,
		store,
		helper.NewFixtureSerializer(t),
		streamengine.WithTracing(oteladapters.NewTracingCollector(tracerProvider.Tracer("test"))),
		streamengine.WithMetrics(oteladapters.NewMetricsCollector(meterProvider.Meter("test"))),
		streamengine.WithContextualLogger(oteladapters.NewOTelLogger(logRecorder)),
	)
	require.NoError(t, err)
	defer controller.Shutdown()

	// act
	appendErr := controller.Append(ctx, 0, helper.FixtureInputEvents(2))
	events, readErr := controller.ReadForward(ctx, 1, 10)
	conflictErr := controller.Append(ctx, 0, helper.FixtureInputEvents(1))

	// assert
	require.NoError(t, appendErr)
	require.NoError(t, readErr)
	require.Len(t, events, 2)
	assert.ErrorIs(t, conflictErr, eventstore.ErrWrongExpectedVersion)

	spans := spanExporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "streamcontroller.append", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, "streamcontroller.read", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
	assert.Equal(t, "streamcontroller.append", spans[2].Name)
	assert.Equal(t, codes.Error, spans[2].Status.Code)

	errorType, found := spanAttribute(spans[2], "error_type")
	assert.True(t, found)
	assert.Equal(t, "wrong_expected_version", errorType)

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &resourceMetrics))

	appendDurations := findMetric[metricdata.Histogram[float64]](t, resourceMetrics, "streamcontroller_append_duration_seconds")
	assert.NotEmpty(t, appendDurations.DataPoints)

	readDurations := findMetric[metricdata.Histogram[float64]](t, resourceMetrics, "streamcontroller_read_duration_seconds")
	assert.NotEmpty(t, readDurations.DataPoints)

	conflicts := findMetric[metricdata.Sum[int64]](t, resourceMetrics, "streamcontroller_wrong_expected_version_total")
	require.Len(t, conflicts.DataPoints, 1)
	assert.Equal(t, int64(1), conflicts.DataPoints[0].Value)

	messages := make([]string, 0)
	for _, record := range logRecorder.Records() {
		messages = append(messages, record.Body().AsString())
	}
	assert.Contains(t, messages, "stream created")
	assert.Contains(t, messages, "events appended")
	assert.Contains(t, messages, "wrong expected version")
}
