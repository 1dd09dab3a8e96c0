package streamengine

import (
	"errors"
	"time"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const defaultMailboxSize = 64

var ErrInvalidMailboxSize = errors.New("mailbox size must not be negative")
var ErrNilClock = errors.New("clock must not be nil")

// Option defines a functional option for configuring a Controller.
type Option func(*Controller) error

// WithLogger sets the logger for the Controller.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: stream loading, reads, subscriptions
// Info level: stream creation, appended event counts with durations
// Warn level: wrong expected versions
// Error level: failures of storage, writer, serializer or subscription registry.
func WithLogger(logger eventstore.Logger) Option {
	return func(c *Controller) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Controller.
// It receives the same messages as the Logger, together with the request context,
// enabling trace correlation.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(c *Controller) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Controller.
// It receives operation durations, appended and read event counts, wrong expected versions and errors.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(c *Controller) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Controller.
// A span is created for each append, read and subscribe operation.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(c *Controller) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithSubscriptionRegistry sets the registry that Subscribe delegates to.
func WithSubscriptionRegistry(registry eventstore.SubscriptionRegistry) Option {
	return func(c *Controller) error {
		c.registry = registry
		return nil
	}
}

// WithPublisher sets a publisher that is notified after each successful append.
func WithPublisher(publisher eventstore.Publisher) Option {
	return func(c *Controller) error {
		c.publisher = publisher
		return nil
	}
}

// WithMailboxSize sets the buffer size of the request mailbox.
// Senders block while the mailbox is full. Zero makes every send a rendezvous with the controller.
func WithMailboxSize(size int) Option {
	return func(c *Controller) error {
		if size < 0 {
			return ErrInvalidMailboxSize
		}

		c.mailboxSize = size

		return nil
	}
}

// WithClock sets the clock used to stamp CreatedAt on appended events.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) error {
		if clock == nil {
			return ErrNilClock
		}

		c.clock = clock

		return nil
	}
}
