package streamengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	logMsgStreamLoaded           = "stream loaded"
	logMsgLoadStreamFailed       = "failed to load stream info"
	logMsgStreamCreated          = "stream created"
	logMsgCreateStreamFailed     = "failed to create stream"
	logMsgEventsAppended         = "events appended"
	logMsgAppendFailed           = "writer failed to append events"
	logMsgEncodeEventFailed      = "failed to encode event"
	logMsgWrongExpectedVersion   = "wrong expected version"
	logMsgEventsRead             = "events read"
	logMsgReadFailed             = "storage failed to read events"
	logMsgDecodeEventFailed      = "failed to decode event"
	logMsgSubscriptionRegistered = "subscription registered"
	logMsgSubscribeFailed        = "subscription registry failed to subscribe"
	logMsgControllerStopped      = "stream controller stopped"
	logAttrError                 = "error"
	logAttrStreamName            = "stream_name"
	logAttrStreamID              = "stream_id"
	logAttrStreamVersion         = "stream_version"
	logAttrExpectedVersion       = "expected_version"
	logAttrStartVersion          = "start_version"
	logAttrEventType             = "event_type"
	logAttrEventCount            = "event_count"
	logAttrDurationMS            = "duration_ms"
	logAttrSubscriptionName      = "subscription_name"
	logAttrStartFrom             = "start_from"

	metricAppendDuration         = "streamcontroller_append_duration_seconds"
	metricReadDuration           = "streamcontroller_read_duration_seconds"
	metricEventsAppended         = "streamcontroller_events_appended_total"
	metricEventsRead             = "streamcontroller_events_read_total"
	metricWrongExpectedVersion   = "streamcontroller_wrong_expected_version_total"
	metricErrors                 = "streamcontroller_errors_total"
	metricLabelStatus            = "status"
	metricLabelStreamName        = "stream_name"
	spanNameAppend               = "streamcontroller.append"
	spanNameRead                 = "streamcontroller.read"
	spanNameSubscribe            = "streamcontroller.subscribe"
	spanAttrOperation            = "operation"
	spanAttrStreamName           = "stream_name"
	spanAttrEventCount           = "event_count"
	spanAttrExpectedVersion      = "expected_version"
	spanAttrStreamVersion        = "stream_version"
	spanAttrStartVersion         = "start_version"
	spanAttrSubscriptionName     = "subscription_name"
	spanAttrErrorType            = "error_type"
	spanAttrDurationMS           = "duration_ms"
	operationAppend              = "append"
	operationRead                = "read"
	operationSubscribe           = "subscribe"
	statusSuccess                = "success"
	statusError                  = "error"
	errorTypeLoadStream          = "load_stream"
	errorTypeWrongVersion        = "wrong_expected_version"
	errorTypeEncodeEvent         = "encode_event"
	errorTypeCreateStream        = "create_stream"
	errorTypeWriteEvents         = "write_events"
	errorTypeStreamNotFound      = "stream_not_found"
	errorTypeReadEvents          = "read_events"
	errorTypeDecodeEvent         = "decode_event"
	errorTypeSubscribe           = "subscribe"
	errorTypeNoSubscriptionStore = "no_subscription_registry"
)

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// logDebug logs at debug level to every configured logger.
func (c *Controller) logDebug(ctx context.Context, msg string, args ...any) {
	args = append([]any{logAttrStreamName, c.streamName}, args...)

	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

// logOperation logs operational information at info level to every configured logger.
func (c *Controller) logOperation(ctx context.Context, msg string, args ...any) {
	args = append([]any{logAttrStreamName, c.streamName}, args...)

	if c.logger != nil {
		c.logger.Info(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

// logWarn logs at warn level to every configured logger.
func (c *Controller) logWarn(ctx context.Context, msg string, args ...any) {
	args = append([]any{logAttrStreamName, c.streamName}, args...)

	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs error information at the error level to every configured logger.
func (c *Controller) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrStreamName, c.streamName, logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if c.logger != nil {
		c.logger.Error(msg, allArgs...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (c *Controller) metricLabels(operation, status string) map[string]string {
	return map[string]string{
		spanAttrOperation:     operation,
		metricLabelStatus:     status,
		metricLabelStreamName: c.streamName,
	}
}

// recordDurationMetrics records a duration, using the context-aware method if the collector supports it.
func (c *Controller) recordDurationMetrics(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if c.metricsCollector == nil {
		return
	}

	labels := c.metricLabels(operation, status)

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		c.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordValueMetrics records a value, using the context-aware method if the collector supports it.
func (c *Controller) recordValueMetrics(
	ctx context.Context,
	metricName string,
	value float64,
	operation, status string,
) {
	if c.metricsCollector == nil {
		return
	}

	labels := c.metricLabels(operation, status)

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
	} else {
		c.metricsCollector.RecordValue(metricName, value, labels)
	}
}

// incrementCounterMetrics increments a counter, using the context-aware method if the collector supports it.
func (c *Controller) incrementCounterMetrics(ctx context.Context, metricName string, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricName, labels)
	} else {
		c.metricsCollector.IncrementCounter(metricName, labels)
	}
}

func (c *Controller) recordErrorMetrics(ctx context.Context, operation, errorType string) {
	labels := c.metricLabels(operation, statusError)
	labels[spanAttrErrorType] = errorType

	c.incrementCounterMetrics(ctx, metricErrors, labels)
}

// === Observer Pattern ===
// An operationObserver bundles the tracing span and metrics of one mailbox turn.

type operationObserver struct {
	c         *Controller
	ctx       context.Context
	span      eventstore.SpanContext
	operation string
	metric    string
	start     time.Time
}

// startObserving starts a span (if tracing is configured) and the duration clock for one operation.
func (c *Controller) startObserving(
	ctx context.Context,
	spanName, operation, metric string,
	attrs map[string]string,
) (*operationObserver, context.Context) {

	observer := &operationObserver{
		c:         c,
		ctx:       ctx,
		operation: operation,
		metric:    metric,
		start:     time.Now(),
	}

	if c.tracingCollector != nil {
		spanAttrs := map[string]string{
			spanAttrOperation:  operation,
			spanAttrStreamName: c.streamName,
		}
		for key, value := range attrs {
			spanAttrs[key] = value
		}

		ctx, observer.span = c.tracingCollector.StartSpan(ctx, spanName, spanAttrs)
		observer.ctx = ctx
	}

	return observer, ctx
}

func (c *Controller) startAppendObserving(
	ctx context.Context,
	expectedVersion eventstore.StreamVersion,
	eventCount int,
) (*operationObserver, context.Context) {

	return c.startObserving(ctx, spanNameAppend, operationAppend, metricAppendDuration, map[string]string{
		spanAttrExpectedVersion: fmt.Sprintf("%d", expectedVersion),
		spanAttrEventCount:      fmt.Sprintf("%d", eventCount),
	})
}

func (c *Controller) startReadObserving(
	ctx context.Context,
	startVersion eventstore.StreamVersion,
) (*operationObserver, context.Context) {

	return c.startObserving(ctx, spanNameRead, operationRead, metricReadDuration, map[string]string{
		spanAttrStartVersion: fmt.Sprintf("%d", startVersion),
	})
}

func (c *Controller) startSubscribeObserving(
	ctx context.Context,
	subscriptionName string,
) (*operationObserver, context.Context) {

	return c.startObserving(ctx, spanNameSubscribe, operationSubscribe, "", map[string]string{
		spanAttrSubscriptionName: subscriptionName,
	})
}

func (o *operationObserver) elapsed() time.Duration {
	return time.Since(o.start)
}

// finishSuccess records the duration and event count and closes the span.
func (o *operationObserver) finishSuccess(eventCount int, version eventstore.StreamVersion) {
	duration := o.elapsed()

	if o.metric != "" {
		o.c.recordDurationMetrics(o.ctx, o.metric, duration, o.operation, statusSuccess)
	}

	switch o.operation {
	case operationAppend:
		o.c.recordValueMetrics(o.ctx, metricEventsAppended, float64(eventCount), o.operation, statusSuccess)
	case operationRead:
		o.c.recordValueMetrics(o.ctx, metricEventsRead, float64(eventCount), o.operation, statusSuccess)
	}

	if o.span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrEventCount:    fmt.Sprintf("%d", eventCount),
		spanAttrStreamVersion: fmt.Sprintf("%d", version),
		spanAttrDurationMS:    fmt.Sprintf("%.2f", toMilliseconds(duration)),
	}

	o.span.SetStatus(statusSuccess)
	o.c.tracingCollector.FinishSpan(o.span, statusSuccess, attrs)
}

// finishError records the duration and error counter and closes the span with the error type.
func (o *operationObserver) finishError(errorType string) {
	duration := o.elapsed()

	if o.metric != "" {
		o.c.recordDurationMetrics(o.ctx, o.metric, duration, o.operation, statusError)
	}

	if errorType == errorTypeWrongVersion {
		o.c.incrementCounterMetrics(o.ctx, metricWrongExpectedVersion, map[string]string{
			spanAttrOperation:     o.operation,
			metricLabelStreamName: o.c.streamName,
		})
	} else {
		o.c.recordErrorMetrics(o.ctx, o.operation, errorType)
	}

	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.c.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}
