package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	logMsgBuildQueryFailed    = "failed to build query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgCreateSchemaFailed  = "failed to create schema"
	logMsgSchemaCreated       = "schema created"
	logMsgStreamCreated       = "stream created"
	logMsgStreamExists        = "stream already exists"
	logMsgEventsRead          = "events read"
	logMsgEventsAppended      = "events appended"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "eventstore operation: "

	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrStreamName      = "stream_name"
	logAttrStreamID        = "stream_id"
	logAttrStartVersion    = "start_version"
	logAttrExpectedVersion = "expected_version"
	logAttrEventCount      = "event_count"
	logAttrRowsAffected    = "rows_affected"
	logAttrDurationMS      = "duration_ms"

	operationCreateStream = "create_stream"
	operationStreamInfo   = "stream_info"
	operationReadForward  = "read_forward"
	operationAppend       = "append"

	spanNameCreateStream = "eventstore.create_stream"
	spanNameStreamInfo   = "eventstore.stream_info"
	spanNameReadForward  = "eventstore.read_forward"
	spanNameAppend       = "eventstore.append"

	metricCreateStreamDuration = "eventstore_create_stream_duration_seconds"
	metricQueryDuration        = "eventstore_query_duration_seconds"
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricEventsQueried        = "eventstore_events_queried_total"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricDatabaseErrors       = "eventstore_database_errors_total"

	labelOperation = "operation"
	labelStatus    = "status"
	labelErrorType = "error_type"

	spanAttrOperation       = "operation"
	spanAttrStreamName      = "stream_name"
	spanAttrStreamID        = "stream_id"
	spanAttrEventCount      = "event_count"
	spanAttrExpectedVersion = "expected_version"
	spanAttrErrorType       = "error_type"
	spanAttrDurationMS      = "duration_ms"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeDatabaseExec        = "database_exec"
	errorTypeRowScan             = "row_scan"
	errorTypeRowsAffected        = "rows_affected"
	errorTypeStreamExists        = "stream_exists"
	errorTypeStreamNotFound      = "stream_not_found"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// operationObserver tracks one engine operation from start to finish and reports it to the
// tracing and metrics collectors.
type operationObserver struct {
	es        *EventStore
	ctx       context.Context
	span      eventstore.SpanContext
	operation string
	metric    string
	start     time.Time
}

func (es *EventStore) startObserving(
	ctx context.Context,
	operation string,
	spanName string,
	durationMetric string,
	attrs map[string]string,
) (*operationObserver, context.Context) {

	spanAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	var span eventstore.SpanContext
	if es.tracingCollector != nil {
		ctx, span = es.tracingCollector.StartSpan(ctx, spanName, spanAttrs)
	}

	return &operationObserver{
		es:        es,
		ctx:       ctx,
		span:      span,
		operation: operation,
		metric:    durationMetric,
		start:     time.Now(),
	}, ctx
}

// finishSuccess records the duration, the number of events handled if countMetric is set,
// and closes the span.
func (o *operationObserver) finishSuccess(countMetric string, eventCount int) time.Duration {
	duration := time.Since(o.start)

	o.es.recordDuration(o.ctx, o.metric, duration, o.operation, statusSuccess)
	if countMetric != "" {
		o.es.recordValue(o.ctx, countMetric, float64(eventCount), o.operation, statusSuccess)
	}

	o.finishSpan(statusSuccess, map[string]string{
		spanAttrEventCount: fmt.Sprintf("%d", eventCount),
		spanAttrDurationMS: fmt.Sprintf("%.2f", o.es.toMilliseconds(duration)),
	})

	return duration
}

// finishError records the duration and a database error counter and closes the span.
func (o *operationObserver) finishError(errorType string) {
	duration := time.Since(o.start)

	o.es.recordDuration(o.ctx, o.metric, duration, o.operation, statusError)
	o.es.incrementCounter(o.ctx, metricDatabaseErrors, map[string]string{
		labelOperation: o.operation,
		labelStatus:    statusError,
		labelErrorType: errorType,
	})

	o.finishSpan(statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", o.es.toMilliseconds(duration)),
	})
}

// finishConflict is like finishError, but counts a concurrency conflict instead of a database error.
func (o *operationObserver) finishConflict() {
	duration := time.Since(o.start)

	o.es.recordDuration(o.ctx, o.metric, duration, o.operation, statusError)
	o.es.incrementCounter(o.ctx, metricConcurrencyConflicts, map[string]string{
		labelOperation:  o.operation,
		"conflict_type": "concurrency",
	})

	o.finishSpan(statusError, map[string]string{spanAttrErrorType: errorTypeConcurrencyConflict})
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.span == nil || o.es.tracingCollector == nil {
		return
	}

	o.span.SetStatus(status)
	for key, value := range attrs {
		o.span.AddAttribute(key, value)
	}

	o.es.tracingCollector.FinishSpan(o.span, status, attrs)
}

func (es *EventStore) recordDuration(
	ctx context.Context,
	metric string,
	duration time.Duration,
	operation, status string,
) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: status}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es *EventStore) recordValue(
	ctx context.Context,
	metric string,
	value float64,
	operation, status string,
) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: status}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metric, value, labels)
}

func (es *EventStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metric, labels)
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (es *EventStore) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	args := []any{logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs expected but noteworthy outcomes, like concurrency conflicts.
func (es *EventStore) logWarn(ctx context.Context, message string, args ...any) {
	if es.logger != nil {
		es.logger.Warn(message, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at the error level.
func (es *EventStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if es.logger != nil {
		es.logger.Error(message, allArgs...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
