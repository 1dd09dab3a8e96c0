package oteladapters

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// MetricsCollector implements eventstore.ContextualMetricsCollector on an OpenTelemetry meter.
//
//   - RecordDuration maps to a Float64Histogram in seconds
//   - IncrementCounter maps to an Int64Counter
//   - RecordValue maps to a Float64Gauge
//
// Instruments are created lazily, once per metric name, and cached.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.RWMutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

// NewMetricsCollector creates a collector that records through meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RecordDuration implements eventstore.MetricsCollector.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext implements eventstore.ContextualMetricsCollector.
func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {

	histogram, ok := m.histogram(metricName)
	if !ok {
		return
	}

	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(labels)...))
}

// IncrementCounter implements eventstore.MetricsCollector.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext implements eventstore.ContextualMetricsCollector.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	counter, ok := m.counter(metricName)
	if !ok {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

// RecordValue implements eventstore.MetricsCollector.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext implements eventstore.ContextualMetricsCollector.
func (m *MetricsCollector) RecordValueContext(
	ctx context.Context,
	metricName string,
	value float64,
	labels map[string]string,
) {

	gauge, ok := m.gauge(metricName)
	if !ok {
		return
	}

	gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (m *MetricsCollector) histogram(name string) (metric.Float64Histogram, bool) {
	return cachedInstrument(&m.mu, m.histograms, name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(
			name,
			metric.WithDescription("Stream operation duration"),
			metric.WithUnit("s"),
		)
	})
}

func (m *MetricsCollector) counter(name string) (metric.Int64Counter, bool) {
	return cachedInstrument(&m.mu, m.counters, name, func() (metric.Int64Counter, error) {
		return m.meter.Int64Counter(name, metric.WithDescription("Stream operation counter"))
	})
}

func (m *MetricsCollector) gauge(name string) (metric.Float64Gauge, bool) {
	return cachedInstrument(&m.mu, m.gauges, name, func() (metric.Float64Gauge, error) {
		return m.meter.Float64Gauge(name, metric.WithDescription("Stream current value"))
	})
}

// cachedInstrument returns the instrument registered under name, creating it on first use.
// An instrument the meter refuses to create is not cached, so the metric is dropped silently.
func cachedInstrument[T any](mu *sync.RWMutex, cache map[string]T, name string, create func() (T, error)) (T, bool) {
	mu.RLock()
	instrument, found := cache[name]
	mu.RUnlock()

	if found {
		return instrument, true
	}

	mu.Lock()
	defer mu.Unlock()

	if instrument, found = cache[name]; found {
		return instrument, true
	}

	instrument, err := create()
	if err != nil {
		var zero T
		return zero, false
	}

	cache[name] = instrument

	return instrument, true
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

var _ eventstore.ContextualMetricsCollector = (*MetricsCollector)(nil)
