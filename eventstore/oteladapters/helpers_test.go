package oteladapters_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// recordingLogger keeps every emitted record.
type recordingLogger struct {
	lognoop.Logger

	mu      sync.Mutex
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
}

func (l *recordingLogger) Records() []log.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]log.Record(nil), l.records...)
}

func recordAttributes(record log.Record) map[string]string {
	attrs := make(map[string]string)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})

	return attrs
}

func findMetric[T metricdata.Aggregation](t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) T {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name != name {
				continue
			}

			data, ok := m.Data.(T)
			require.True(t, ok, "metric %s has unexpected aggregation %T", name, m.Data)

			return data
		}
	}

	require.FailNow(t, "metric not found", name)

	var zero T
	return zero
}

func hasMetric(resourceMetrics metricdata.ResourceMetrics, name string) bool {
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return true
			}
		}
	}

	return false
}
