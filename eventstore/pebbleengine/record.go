package pebbleengine

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

var recordJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// record is the persisted form of an event entry. StreamID and StreamVersion are part of the key.
type record struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	CausationID   uuid.UUID `json:"causation_id"`
	Data          []byte    `json:"data"`
	Metadata      []byte    `json:"metadata"`
	CreatedAt     time.Time `json:"created_at"`
}

func encodeRecord(event eventstore.StorableEvent) ([]byte, error) {
	return recordJSON.Marshal(record{
		EventID:       event.EventID,
		EventType:     event.EventType,
		CorrelationID: event.CorrelationID,
		CausationID:   event.CausationID,
		Data:          event.Data,
		Metadata:      event.Metadata,
		CreatedAt:     event.CreatedAt,
	})
}

func decodeRecord(
	streamID eventstore.StreamID,
	version eventstore.StreamVersion,
	value []byte,
) (eventstore.StorableEvent, error) {

	var r record
	if err := recordJSON.Unmarshal(value, &r); err != nil {
		return eventstore.StorableEvent{}, err
	}

	return eventstore.StorableEvent{
		EventID:       r.EventID,
		StreamID:      streamID,
		StreamVersion: version,
		EventType:     r.EventType,
		CorrelationID: r.CorrelationID,
		CausationID:   r.CausationID,
		Data:          r.Data,
		Metadata:      r.Metadata,
		CreatedAt:     r.CreatedAt,
	}, nil
}
