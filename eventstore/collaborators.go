package eventstore

import "context"

// NoTypeHint is passed to Serializer.Deserialize when the caller has no type information.
const NoTypeHint = ""

// Serializer turns arbitrary payloads into storable bytes and back.
// Implementations must be safe for concurrent use by many stream controllers.
type Serializer interface {
	Serialize(value any) ([]byte, error)

	// Deserialize decodes data. typeHint is the event type for payloads and NoTypeHint for metadata.
	Deserialize(data []byte, typeHint string) (any, error)
}

// Storage is the read side of the physical storage engine plus stream creation.
// Implementations must be safe for concurrent use by many stream controllers.
type Storage interface {
	// CreateStream creates the stream record and returns its new internal identifier.
	// Returns ErrStreamAlreadyExists if a stream with this name was created before.
	CreateStream(ctx context.Context, streamName string) (StreamID, error)

	// StreamInfo reports the internal identifier and current version of a stream.
	// A stream that was never created is reported with Exists == false and Version 0.
	StreamInfo(ctx context.Context, streamName string) (StreamInfo, error)

	// ReadForward returns up to count events of the stream, ascending, starting at startVersion.
	// The result may be empty. Returns ErrStreamNotFound for an unknown streamID.
	ReadForward(ctx context.Context, streamID StreamID, startVersion StreamVersion, count uint64) (StorableEvents, error)
}

// Writer durably appends a prepared, already versioned batch of events.
// The batch is applied atomically: either all events are persisted or none.
type Writer interface {
	AppendToStream(ctx context.Context, streamID StreamID, streamName string, events StorableEvents) error
}

// StreamOwner is the identity of the stream controller a subscription belongs to.
// A SubscriptionRegistry may use it to catch up on events that were appended before it
// started delivering live events.
type StreamOwner interface {
	StreamName() string
	ReadForward(ctx context.Context, startVersion StreamVersion, count uint64) (RecordedEvents, error)
}

// Subscriber receives the events of a subscription, in stream order.
// Returning an error stops the subscription.
type Subscriber interface {
	HandleEvents(ctx context.Context, subscriptionName string, events RecordedEvents) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, subscriptionName string, events RecordedEvents) error

// HandleEvents implements Subscriber.
func (f SubscriberFunc) HandleEvents(ctx context.Context, subscriptionName string, events RecordedEvents) error {
	return f(ctx, subscriptionName, events)
}

// Subscription is the handle a SubscriptionRegistry returns for a registered subscriber.
type Subscription interface {
	Name() string
	StreamName() string
	StartVersion() StreamVersion
	Cancel()
	Done() <-chan struct{}
	Err() error
}

// SubscriptionRegistry registers subscribers against a stream and delivers events to them.
//
// Subscribe is called by the owning stream controller while it serves the subscribe request,
// so implementations must not call back into the owner synchronously.
type SubscriptionRegistry interface {
	Subscribe(
		ctx context.Context,
		streamName string,
		owner StreamOwner,
		subscriptionName string,
		subscriber Subscriber,
		startVersion StreamVersion,
	) (Subscription, error)
}

// Publisher is notified by a stream controller after each successful append.
type Publisher interface {
	Publish(ctx context.Context, streamName string, events RecordedEvents)
}
