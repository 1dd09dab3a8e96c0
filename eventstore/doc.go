// Package eventstore provides the core vocabulary for an event store built from
// independent, per-stream concurrency units.
//
// A stream is an ordered, append-only log of events identified by a unique name.
// Every event appended to a stream gets a stream version: versions start at 1,
// are contiguous, and the current version of a stream equals the number of events
// ever appended to it. Version 0 means the stream is empty (or does not exist yet).
//
// This package defines:
//   - InputEvent: what callers hand in to be appended
//   - StorableEvent: the encoded, versioned representation written by a Writer
//   - RecordedEvent: the decoded representation handed back to callers
//   - StartFrom: where a subscription starts (origin, current, explicit version)
//   - the collaborator interfaces a stream controller orchestrates:
//     Serializer, Storage, Writer, SubscriptionRegistry, Publisher
//   - the dependency-free observability interfaces (Logger, ContextualLogger,
//     MetricsCollector, TracingCollector)
//   - the sentinel errors shared by all implementations
//
// The stream controller itself lives in the streamengine package; storage
// implementations live in postgresengine and pebbleengine.
//
// Common usage pattern:
//
//	directory, _ := streamengine.NewDirectory(storage, writer, eventstore.NewJSONSerializer())
//	stream, _ := directory.Stream("account-4711")
//
//	err := stream.Append(ctx, 0, []eventstore.InputEvent{
//		eventstore.BuildInputEvent("AccountOpened", payload, metadata),
//	})
//	if errors.Is(err, eventstore.ErrWrongExpectedVersion) {
//		// re-read the version and decide again
//	}
//
//	events, _ := stream.ReadForward(ctx, 1, 100)
package eventstore
