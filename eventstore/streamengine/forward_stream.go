package streamengine

import (
	"context"
	"iter"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// ForwardStream is a lazy, pull-based cursor over a stream, reading one bounded batch per pull.
// Every pull is a regular ReadForward request through the owning controller, so events appended
// while the cursor is open become visible to later pulls.
//
// A ForwardStream is not safe for concurrent use.
type ForwardStream struct {
	owner     *Controller
	next      eventstore.StreamVersion
	batchSize uint64
	exhausted bool
}

// StreamForward returns a fresh cursor starting at startVersion (0 is treated as 1) that reads
// batchSize events per pull.
//
// Returns eventstore.ErrStreamNotFound if the stream was never created and
// eventstore.ErrInvalidCount if batchSize is 0.
func (c *Controller) StreamForward(
	ctx context.Context,
	startVersion eventstore.StreamVersion,
	batchSize uint64,
) (*ForwardStream, error) {

	if batchSize == 0 {
		return nil, eventstore.ErrInvalidCount
	}

	if startVersion == 0 {
		startVersion = 1
	}

	var err error

	submitErr := c.submit(ctx, func(ctx context.Context) {
		if err = c.ensureLoaded(ctx); err != nil {
			return
		}

		if !c.hasID {
			err = eventstore.ErrStreamNotFound
		}
	})
	if submitErr != nil {
		return nil, submitErr
	}

	if err != nil {
		return nil, err
	}

	return &ForwardStream{
		owner:     c,
		next:      startVersion,
		batchSize: batchSize,
	}, nil
}

// NextBatch pulls the next batch. It returns an empty batch once the cursor has reached the end
// of the stream; from then on it doesn't read anymore.
// On error the cursor stays where it was, so the pull can be retried.
func (fs *ForwardStream) NextBatch(ctx context.Context) (eventstore.RecordedEvents, error) {
	if fs.exhausted {
		return nil, nil
	}

	events, err := fs.owner.ReadForward(ctx, fs.next, fs.batchSize)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		fs.exhausted = true
		return nil, nil
	}

	fs.next += uint64(len(events))

	return events, nil
}

// NextVersion returns the version the next pull starts at.
func (fs *ForwardStream) NextVersion() eventstore.StreamVersion {
	return fs.next
}

// Exhausted reports whether a pull has returned no events.
func (fs *ForwardStream) Exhausted() bool {
	return fs.exhausted
}

// Events yields the remaining events one at a time, pulling batches as needed.
// Iteration ends after the first error, which is yielded with a zero event.
//
//	for event, err := range forward.Events(ctx) {
//		if err != nil {
//			return err
//		}
//		// ...
//	}
func (fs *ForwardStream) Events(ctx context.Context) iter.Seq2[eventstore.RecordedEvent, error] {
	return func(yield func(eventstore.RecordedEvent, error) bool) {
		for {
			batch, err := fs.NextBatch(ctx)
			if err != nil {
				yield(eventstore.RecordedEvent{}, err)
				return
			}

			if len(batch) == 0 {
				return
			}

			for _, event := range batch {
				if !yield(event, nil) {
					return
				}
			}
		}
	}
}
