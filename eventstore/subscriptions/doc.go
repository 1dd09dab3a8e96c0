// Package subscriptions provides an in-process SubscriptionRegistry that is also the
// Publisher of the stream controllers it serves.
//
// A subscription first catches up by reading from its owning controller, starting after the
// resolved start version, and then delivers the batches the controller publishes after each
// append. Versions that were already delivered are skipped, so a subscriber sees every event
// after its start version exactly once and in stream order.
//
// Publish never blocks the controller. If a subscription's live buffer is full the batch is
// dropped for that subscription and it catches up through the controller again.
//
// Usage:
//
//	registry, _ := subscriptions.NewRegistry(subscriptions.WithLogger(slog.Default()))
//	defer registry.Close()
//
//	directory, _ := streamengine.NewDirectory(store, store, serializer,
//		streamengine.WithSubscriptionRegistry(registry),
//		streamengine.WithPublisher(registry),
//	)
package subscriptions
