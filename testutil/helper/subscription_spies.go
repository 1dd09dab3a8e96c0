package helper

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// SubscribeCall is one recorded SubscriptionRegistry.Subscribe invocation.
type SubscribeCall struct {
	StreamName       string
	Owner            eventstore.StreamOwner
	SubscriptionName string
	Subscriber       eventstore.Subscriber
	StartVersion     eventstore.StreamVersion
}

// SubscriptionRegistrySpy records Subscribe calls and answers with a StubSubscription,
// or with the error set by FailNextSubscribe.
type SubscriptionRegistrySpy struct {
	mu      sync.Mutex
	calls   []SubscribeCall
	nextErr error
}

func NewSubscriptionRegistrySpy() *SubscriptionRegistrySpy {
	return &SubscriptionRegistrySpy{}
}

// FailNextSubscribe makes the next Subscribe call return err.
func (s *SubscriptionRegistrySpy) FailNextSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextErr = err
}

// Subscribe implements eventstore.SubscriptionRegistry.
func (s *SubscriptionRegistrySpy) Subscribe(
	_ context.Context,
	streamName string,
	owner eventstore.StreamOwner,
	subscriptionName string,
	subscriber eventstore.Subscriber,
	startVersion eventstore.StreamVersion,
) (eventstore.Subscription, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, SubscribeCall{
		StreamName:       streamName,
		Owner:            owner,
		SubscriptionName: subscriptionName,
		Subscriber:       subscriber,
		StartVersion:     startVersion,
	})

	if err := s.nextErr; err != nil {
		s.nextErr = nil
		return nil, err
	}

	return NewStubSubscription(subscriptionName, streamName, startVersion), nil
}

// Calls returns a copy of all recorded calls.
func (s *SubscriptionRegistrySpy) Calls() []SubscribeCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SubscribeCall(nil), s.calls...)
}

// StubSubscription is an inert eventstore.Subscription.
type StubSubscription struct {
	name         string
	streamName   string
	startVersion eventstore.StreamVersion
	done         chan struct{}
	once         sync.Once
}

func NewStubSubscription(name, streamName string, startVersion eventstore.StreamVersion) *StubSubscription {
	return &StubSubscription{
		name:         name,
		streamName:   streamName,
		startVersion: startVersion,
		done:         make(chan struct{}),
	}
}

func (s *StubSubscription) Name() string {
	return s.name
}

func (s *StubSubscription) StreamName() string {
	return s.streamName
}

func (s *StubSubscription) StartVersion() eventstore.StreamVersion {
	return s.startVersion
}

func (s *StubSubscription) Done() <-chan struct{} {
	return s.done
}

func (s *StubSubscription) Err() error {
	return nil
}

func (s *StubSubscription) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// PublisherSpy records every published batch.
type PublisherSpy struct {
	mu      sync.Mutex
	batches map[string][]eventstore.RecordedEvents
}

func NewPublisherSpy() *PublisherSpy {
	return &PublisherSpy{batches: make(map[string][]eventstore.RecordedEvents)}
}

// Publish implements eventstore.Publisher.
func (s *PublisherSpy) Publish(_ context.Context, streamName string, events eventstore.RecordedEvents) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[streamName] = append(s.batches[streamName], events)
}

// Batches returns the batches published for streamName, in order.
func (s *PublisherSpy) Batches(streamName string) []eventstore.RecordedEvents {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]eventstore.RecordedEvents(nil), s.batches[streamName]...)
}

// SubscriberSpy is an eventstore.Subscriber that collects delivered events.
// It fails with FailWith once it has received failAfter events, if FailWith was set.
type SubscriberSpy struct {
	mu        sync.Mutex
	events    eventstore.RecordedEvents
	failWith  error
	failAfter int
	received  chan struct{}
}

func NewSubscriberSpy() *SubscriberSpy {
	return &SubscriberSpy{received: make(chan struct{}, 1024)}
}

// FailWith makes HandleEvents return err once at least after events were delivered.
func (s *SubscriberSpy) FailWith(err error, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failWith = err
	s.failAfter = after
}

// HandleEvents implements eventstore.Subscriber.
func (s *SubscriberSpy) HandleEvents(_ context.Context, _ string, events eventstore.RecordedEvents) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)

	for range events {
		select {
		case s.received <- struct{}{}:
		default:
		}
	}

	if s.failWith != nil && len(s.events) >= s.failAfter {
		return s.failWith
	}

	return nil
}

// Received returns a channel that gets one value per delivered event.
func (s *SubscriberSpy) Received() <-chan struct{} {
	return s.received
}

// Events returns a copy of all delivered events.
func (s *SubscriberSpy) Events() eventstore.RecordedEvents {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append(eventstore.RecordedEvents(nil), s.events...)
}

var _ eventstore.SubscriptionRegistry = (*SubscriptionRegistrySpy)(nil)
var _ eventstore.Publisher = (*PublisherSpy)(nil)
var _ eventstore.Subscriber = (*SubscriberSpy)(nil)
