package streamengine

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// ReadForward returns up to count events in ascending version order, starting at startVersion.
// The result is shorter than count, or empty, when the stream has fewer events.
//
// Returns eventstore.ErrStreamNotFound if the stream was never created, without touching storage.
// Returns eventstore.ErrInvalidCount if count is 0 and eventstore.ErrDecodingEventFailed if a
// stored payload can't be deserialized. Storage errors are returned unmodified.
func (c *Controller) ReadForward(
	ctx context.Context,
	startVersion eventstore.StreamVersion,
	count uint64,
) (eventstore.RecordedEvents, error) {

	if count == 0 {
		return nil, eventstore.ErrInvalidCount
	}

	var events eventstore.RecordedEvents
	var err error

	submitErr := c.submit(ctx, func(ctx context.Context) {
		events, err = c.serveReadForward(ctx, startVersion, count)
	})
	if submitErr != nil {
		return nil, submitErr
	}

	return events, err
}

func (c *Controller) serveReadForward(
	ctx context.Context,
	startVersion eventstore.StreamVersion,
	count uint64,
) (eventstore.RecordedEvents, error) {

	observer, ctx := c.startReadObserving(ctx, startVersion)

	if err := c.ensureLoaded(ctx); err != nil {
		observer.finishError(errorTypeLoadStream)
		return nil, err
	}

	if !c.hasID {
		observer.finishError(errorTypeStreamNotFound)
		return nil, eventstore.ErrStreamNotFound
	}

	storable, err := c.storage.ReadForward(ctx, c.streamID, startVersion, count)
	if err != nil {
		c.logError(ctx, logMsgReadFailed, err, logAttrStartVersion, startVersion)
		observer.finishError(errorTypeReadEvents)

		return nil, err
	}

	events, err := c.decodeEvents(ctx, storable)
	if err != nil {
		observer.finishError(errorTypeDecodeEvent)
		return nil, err
	}

	c.logDebug(ctx, logMsgEventsRead,
		logAttrStartVersion, startVersion,
		logAttrEventCount, len(events),
		logAttrDurationMS, toMilliseconds(observer.elapsed()),
	)
	observer.finishSuccess(len(events), c.version)

	return events, nil
}

// decodeEvents deserializes payloads with the event type as hint and metadata without a hint.
func (c *Controller) decodeEvents(
	ctx context.Context,
	storable eventstore.StorableEvents,
) (eventstore.RecordedEvents, error) {

	events := make(eventstore.RecordedEvents, 0, len(storable))

	for _, event := range storable {
		data, err := c.serializer.Deserialize(event.Data, event.EventType)
		if err != nil {
			c.logError(ctx, logMsgDecodeEventFailed, err,
				logAttrEventType, event.EventType,
				logAttrStreamVersion, event.StreamVersion,
			)

			return nil, errors.Join(eventstore.ErrDecodingEventFailed, err)
		}

		metadata, err := c.serializer.Deserialize(event.Metadata, eventstore.NoTypeHint)
		if err != nil {
			c.logError(ctx, logMsgDecodeEventFailed, err,
				logAttrEventType, event.EventType,
				logAttrStreamVersion, event.StreamVersion,
			)

			return nil, errors.Join(eventstore.ErrDecodingEventFailed, err)
		}

		events = append(events, eventstore.RecordedEvent{
			EventID:       event.EventID,
			StreamID:      event.StreamID,
			StreamVersion: event.StreamVersion,
			EventType:     event.EventType,
			CorrelationID: event.CorrelationID,
			CausationID:   event.CausationID,
			Data:          data,
			Metadata:      metadata,
			CreatedAt:     event.CreatedAt,
		})
	}

	return events, nil
}
