// Package streamengine provides the stream controller: one concurrency unit per stream name
// that serializes every append, read and subscribe request for its stream.
//
// Each Controller owns a goroutine reading from a single-consumer mailbox. Requests are served
// strictly one at a time in arrival order, which is the only concurrency control needed:
// no two appends can race past an expected-version check, and version queries never go backwards.
// Controllers for different streams share no mutable state and run fully in parallel.
//
// Before serving its first request a controller loads the stream's internal identifier and
// current version from storage. A stream materializes lazily: the first append with expected
// version 0 creates the stream record, later appends must state the exact current version.
//
// Callers may abandon a request via its context, but a request that was already dequeued runs
// to completion. Treat a timed-out append as "unknown outcome" and re-check the version.
//
// Usage examples:
//
//	directory, _ := streamengine.NewDirectory(
//		store, // eventstore.Storage, e.g. from postgresengine or pebbleengine
//		store, // eventstore.Writer
//		eventstore.NewJSONSerializer(),
//		streamengine.WithLogger(slog.Default()),
//		streamengine.WithSubscriptionRegistry(registry),
//	)
//	defer directory.Shutdown()
//
//	stream, _ := directory.Stream("account-4711")
//	err := stream.Append(ctx, 0, events)
//
//	forward, _ := stream.StreamForward(ctx, 1, 100)
//	for event, err := range forward.Events(ctx) {
//		// ...
//	}
package streamengine
