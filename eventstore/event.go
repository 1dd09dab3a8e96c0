package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// InputEvent is a caller's intent to append one event to a stream.
//
// Data and Metadata are not encoded yet; the stream controller encodes them with its Serializer
// while preparing the batch. A zero EventID is replaced with a freshly generated UUIDv7.
type InputEvent struct {
	EventID       uuid.UUID
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	EventType     string
	Data          any
	Metadata      any
}

// BuildInputEvent is a factory method for InputEvent without correlation or causation.
func BuildInputEvent(eventType string, data any, metadata any) InputEvent {
	return InputEvent{
		EventType: eventType,
		Data:      data,
		Metadata:  metadata,
	}
}

// WithCorrelation returns a copy of the InputEvent carrying the given correlation and causation IDs.
func (e InputEvent) WithCorrelation(correlationID uuid.UUID, causationID uuid.UUID) InputEvent {
	e.CorrelationID = correlationID
	e.CausationID = causationID

	return e
}

// StorableEvents is an alias type for a slice of StorableEvent.
type StorableEvents = []StorableEvent

// StorableEvent is the durable representation of an event: versioned, encoded, and bound to
// the internal StreamID. Writers persist it, Storage reads it back. Once written it is immutable.
type StorableEvent struct {
	EventID       uuid.UUID
	StreamID      StreamID
	StreamVersion StreamVersion
	EventType     string
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	Data          []byte
	Metadata      []byte
	CreatedAt     time.Time
}

// RecordedEvents is an alias type for a slice of RecordedEvent.
type RecordedEvents = []RecordedEvent

// RecordedEvent is a persisted event with Data and Metadata decoded again.
type RecordedEvent struct {
	EventID       uuid.UUID
	StreamID      StreamID
	StreamVersion StreamVersion
	EventType     string
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	Data          any
	Metadata      any
	CreatedAt     time.Time
}
