package streamengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// Append appends events to the stream if expectedVersion matches the stream's current version.
//
// Expected version 0 on a stream that was never created creates it. The batch gets the
// contiguous versions current+1 … current+len(events) and is handed to the Writer atomically.
//
// Returns eventstore.ErrNoEvents for an empty batch, eventstore.ErrWrongExpectedVersion on a
// version mismatch and eventstore.ErrEncodingEventFailed if a payload can't be serialized.
// Errors from Storage.CreateStream and Writer.AppendToStream are returned unmodified.
//
// If ctx is done before the controller has answered, the context error is returned, but the
// append may still be applied: re-check the Version before retrying.
func (c *Controller) Append(
	ctx context.Context,
	expectedVersion eventstore.StreamVersion,
	events []eventstore.InputEvent,
) error {

	if len(events) == 0 {
		return eventstore.ErrNoEvents
	}

	var err error

	submitErr := c.submit(ctx, func(ctx context.Context) {
		err = c.serveAppend(ctx, expectedVersion, events)
	})
	if submitErr != nil {
		return submitErr
	}

	return err
}

func (c *Controller) serveAppend(
	ctx context.Context,
	expectedVersion eventstore.StreamVersion,
	events []eventstore.InputEvent,
) error {

	observer, ctx := c.startAppendObserving(ctx, expectedVersion, len(events))

	if err := c.ensureLoaded(ctx); err != nil {
		observer.finishError(errorTypeLoadStream)
		return err
	}

	creating := c.mayCreate(expectedVersion)

	if !creating && !c.matchesVersion(expectedVersion) {
		c.logWarn(ctx, logMsgWrongExpectedVersion,
			logAttrExpectedVersion, expectedVersion,
			logAttrStreamVersion, c.version,
		)
		observer.finishError(errorTypeWrongVersion)

		return errors.Join(
			eventstore.ErrWrongExpectedVersion,
			fmt.Errorf("stream %q is at version %d, expected version was %d", c.streamName, c.version, expectedVersion),
		)
	}

	batch, err := c.prepareBatch(ctx, events)
	if err != nil {
		observer.finishError(errorTypeEncodeEvent)
		return err
	}

	if creating {
		streamID, createErr := c.storage.CreateStream(ctx, c.streamName)
		if createErr != nil {
			c.logError(ctx, logMsgCreateStreamFailed, createErr)
			observer.finishError(errorTypeCreateStream)

			return createErr
		}

		c.hasID = true
		c.streamID = streamID
		c.logOperation(ctx, logMsgStreamCreated, logAttrStreamID, streamID)
	}

	for i := range batch {
		batch[i].StreamID = c.streamID
	}

	if err = c.writer.AppendToStream(ctx, c.streamID, c.streamName, batch); err != nil {
		c.logError(ctx, logMsgAppendFailed, err,
			logAttrExpectedVersion, expectedVersion,
			logAttrEventCount, len(batch),
		)
		observer.finishError(errorTypeWriteEvents)

		return err
	}

	c.version += uint64(len(batch))

	c.logOperation(ctx, logMsgEventsAppended,
		logAttrEventCount, len(batch),
		logAttrStreamVersion, c.version,
		logAttrDurationMS, toMilliseconds(observer.elapsed()),
	)
	observer.finishSuccess(len(batch), c.version)

	c.publish(ctx, batch)

	return nil
}

// publish hands the appended batch, decoded like a read would return it, to the Publisher.
func (c *Controller) publish(ctx context.Context, batch eventstore.StorableEvents) {
	if c.publisher == nil {
		return
	}

	recorded, err := c.decodeEvents(ctx, batch)
	if err != nil {
		return
	}

	c.publisher.Publish(ctx, c.streamName, recorded)
}

// mayCreate reports whether the request is the one that materializes the stream.
func (c *Controller) mayCreate(expectedVersion eventstore.StreamVersion) bool {
	return !c.hasID && expectedVersion == 0 && c.version == 0
}

func (c *Controller) matchesVersion(expectedVersion eventstore.StreamVersion) bool {
	return c.hasID && expectedVersion == c.version
}

// prepareBatch encodes the events and assigns versions following the current version.
// StreamID is attached by the caller once it is known.
func (c *Controller) prepareBatch(
	ctx context.Context,
	events []eventstore.InputEvent,
) (eventstore.StorableEvents, error) {

	createdAt := c.clock().UTC()
	batch := make(eventstore.StorableEvents, 0, len(events))

	for i, event := range events {
		data, err := c.serializer.Serialize(event.Data)
		if err != nil {
			c.logError(ctx, logMsgEncodeEventFailed, err, logAttrEventType, event.EventType)
			return nil, errors.Join(eventstore.ErrEncodingEventFailed, err)
		}

		metadata, err := c.serializer.Serialize(event.Metadata)
		if err != nil {
			c.logError(ctx, logMsgEncodeEventFailed, err, logAttrEventType, event.EventType)
			return nil, errors.Join(eventstore.ErrEncodingEventFailed, err)
		}

		eventID := event.EventID
		if eventID == uuid.Nil {
			if eventID, err = uuid.NewV7(); err != nil {
				return nil, errors.Join(eventstore.ErrEncodingEventFailed, err)
			}
		}

		batch = append(batch, eventstore.StorableEvent{
			EventID:       eventID,
			StreamVersion: c.version + 1 + uint64(i),
			EventType:     event.EventType,
			CorrelationID: event.CorrelationID,
			CausationID:   event.CausationID,
			Data:          data,
			Metadata:      metadata,
			CreatedAt:     createdAt,
		})
	}

	return batch, nil
}
