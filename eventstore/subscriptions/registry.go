package subscriptions

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	defaultCatchUpBatchSize = 256
	defaultLiveBufferSize   = 16

	logMsgSubscriptionStarted = "subscription started"
	logMsgSubscriptionStopped = "subscription stopped"
	logMsgSubscriberFailed    = "subscriber failed to handle events"
	logMsgCatchUpFailed       = "subscription failed to catch up"
	logMsgLiveBatchDropped    = "live buffer full, subscription falls back to catching up"
	logAttrError              = "error"
	logAttrStreamName         = "stream_name"
	logAttrSubscriptionName   = "subscription_name"
	logAttrStartVersion       = "start_version"
	logAttrDeliveredVersion   = "delivered_version"
)

var ErrEmptySubscriptionName = errors.New("empty subscription name supplied")
var ErrSubscriptionAlreadyExists = errors.New("subscription already exists for this stream")
var ErrNilSubscriber = errors.New("subscriber must not be nil")
var ErrNilStreamOwner = errors.New("stream owner must not be nil")
var ErrRegistryClosed = errors.New("subscription registry is closed")
var ErrSubscriberFailed = errors.New("subscriber failed")
var ErrInvalidBatchSize = errors.New("batch size must be positive")
var ErrInvalidBufferSize = errors.New("buffer size must be positive")

// Option defines a functional option for configuring a Registry.
type Option func(*Registry) error

// WithLogger sets the logger for the Registry.
//
// Debug level: subscriptions starting and stopping, dropped live batches
// Error level: subscriber and catch-up failures.
func WithLogger(logger eventstore.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// WithCatchUpBatchSize sets how many events a subscription reads per catch-up request.
func WithCatchUpBatchSize(size uint64) Option {
	return func(r *Registry) error {
		if size == 0 {
			return ErrInvalidBatchSize
		}

		r.catchUpBatchSize = size

		return nil
	}
}

// WithLiveBufferSize sets how many published batches a subscription buffers before it drops them.
func WithLiveBufferSize(size int) Option {
	return func(r *Registry) error {
		if size <= 0 {
			return ErrInvalidBufferSize
		}

		r.liveBufferSize = size

		return nil
	}
}

type subscriptionKey struct {
	streamName       string
	subscriptionName string
}

// Registry implements eventstore.SubscriptionRegistry and eventstore.Publisher.
type Registry struct {
	logger           eventstore.Logger
	catchUpBatchSize uint64
	liveBufferSize   int

	mu            sync.Mutex
	subscriptions map[subscriptionKey]*subscription
	closed        bool
}

// NewRegistry creates a Registry with optional configuration.
func NewRegistry(options ...Option) (*Registry, error) {
	r := &Registry{
		catchUpBatchSize: defaultCatchUpBatchSize,
		liveBufferSize:   defaultLiveBufferSize,
		subscriptions:    make(map[subscriptionKey]*subscription),
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Subscribe registers subscriber for streamName and starts delivering in the background.
// It returns right away and never calls back into owner synchronously.
func (r *Registry) Subscribe(
	ctx context.Context,
	streamName string,
	owner eventstore.StreamOwner,
	subscriptionName string,
	subscriber eventstore.Subscriber,
	startVersion eventstore.StreamVersion,
) (eventstore.Subscription, error) {

	switch {
	case subscriptionName == "":
		return nil, ErrEmptySubscriptionName
	case subscriber == nil:
		return nil, ErrNilSubscriber
	case owner == nil:
		return nil, ErrNilStreamOwner
	}

	key := subscriptionKey{streamName: streamName, subscriptionName: subscriptionName}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	if _, exists := r.subscriptions[key]; exists {
		return nil, ErrSubscriptionAlreadyExists
	}

	sub := newSubscription(ctx, r, key, owner, subscriber, startVersion)
	r.subscriptions[key] = sub

	go sub.run()

	r.logDebug(logMsgSubscriptionStarted,
		logAttrStreamName, streamName,
		logAttrSubscriptionName, subscriptionName,
		logAttrStartVersion, startVersion,
	)

	return sub, nil
}

// Publish hands events to every subscription of streamName without blocking.
func (r *Registry) Publish(_ context.Context, streamName string, events eventstore.RecordedEvents) {
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, sub := range r.subscriptions {
		if key.streamName == streamName {
			sub.offer(events)
		}
	}
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subscriptions)
}

// Close cancels all subscriptions and waits until they have stopped.
// Later calls to Subscribe fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	active := make([]*subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		active = append(active, sub)
	}
	r.mu.Unlock()

	for _, sub := range active {
		sub.Cancel()
		<-sub.Done()
	}
}

func (r *Registry) unregister(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subscriptions[sub.key] == sub {
		delete(r.subscriptions, sub.key)
	}
}

func (r *Registry) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Registry) logError(msg string, err error, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, append([]any{logAttrError, err.Error()}, args...)...)
	}
}

var _ eventstore.SubscriptionRegistry = (*Registry)(nil)
var _ eventstore.Publisher = (*Registry)(nil)
