// Package helper provides test doubles and fixtures shared by the stream controller,
// storage engine and subscription tests.
//
// InMemoryStore is a Storage and Writer with failure injection and call counting.
// The spies capture logs, metrics, spans, subscriptions and published batches,
// so tests can assert on what a component reported without any real backend.
package helper
