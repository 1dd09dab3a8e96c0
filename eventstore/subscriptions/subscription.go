package subscriptions

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

type subscription struct {
	registry     *Registry
	key          subscriptionKey
	owner        eventstore.StreamOwner
	subscriber   eventstore.Subscriber
	startVersion eventstore.StreamVersion

	ctx    context.Context
	cancel context.CancelFunc
	live   chan eventstore.RecordedEvents
	lagged chan struct{}
	done   chan struct{}

	mu  sync.Mutex
	err error

	// owned by the run goroutine
	delivered eventstore.StreamVersion
}

func newSubscription(
	ctx context.Context,
	registry *Registry,
	key subscriptionKey,
	owner eventstore.StreamOwner,
	subscriber eventstore.Subscriber,
	startVersion eventstore.StreamVersion,
) *subscription {

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &subscription{
		registry:     registry,
		key:          key,
		owner:        owner,
		subscriber:   subscriber,
		startVersion: startVersion,
		ctx:          subCtx,
		cancel:       cancel,
		live:         make(chan eventstore.RecordedEvents, registry.liveBufferSize),
		lagged:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		delivered:    startVersion,
	}
}

func (s *subscription) Name() string {
	return s.key.subscriptionName
}

func (s *subscription) StreamName() string {
	return s.key.streamName
}

func (s *subscription) StartVersion() eventstore.StreamVersion {
	return s.startVersion
}

// Cancel stops the subscription. It is safe to call more than once.
func (s *subscription) Cancel() {
	s.cancel()
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription stopped: nil after Cancel, otherwise the subscriber or
// catch-up failure. It is only meaningful once Done is closed.
func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// offer must not block, it runs inside the publishing controller's turn.
func (s *subscription) offer(events eventstore.RecordedEvents) {
	select {
	case s.live <- events:
	default:
		select {
		case s.lagged <- struct{}{}:
		default:
		}
	}
}

func (s *subscription) run() {
	err := s.serve()

	if s.ctx.Err() != nil {
		err = nil
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.cancel()
	s.registry.unregister(s)
	s.registry.logDebug(logMsgSubscriptionStopped,
		logAttrStreamName, s.key.streamName,
		logAttrSubscriptionName, s.key.subscriptionName,
		logAttrDeliveredVersion, s.delivered,
	)

	close(s.done)
}

func (s *subscription) serve() error {
	if err := s.catchUp(); err != nil {
		return err
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil

		case events := <-s.live:
			if err := s.deliverLive(events); err != nil {
				return err
			}

		case <-s.lagged:
			s.registry.logDebug(logMsgLiveBatchDropped,
				logAttrStreamName, s.key.streamName,
				logAttrSubscriptionName, s.key.subscriptionName,
			)

			if err := s.catchUp(); err != nil {
				return err
			}
		}
	}
}

// deliverLive delivers a published batch, reading whatever lies between the last delivered
// version and the batch from the owner first.
func (s *subscription) deliverLive(events eventstore.RecordedEvents) error {
	if events[0].StreamVersion > s.delivered+1 {
		if err := s.catchUp(); err != nil {
			return err
		}
	}

	return s.deliver(events)
}

// catchUp reads from the owner until it returns no more events.
func (s *subscription) catchUp() error {
	for {
		events, err := s.owner.ReadForward(s.ctx, s.delivered+1, s.registry.catchUpBatchSize)
		if errors.Is(err, eventstore.ErrStreamNotFound) {
			return nil
		}

		if err != nil {
			s.registry.logError(logMsgCatchUpFailed, err,
				logAttrStreamName, s.key.streamName,
				logAttrSubscriptionName, s.key.subscriptionName,
			)

			return err
		}

		if len(events) == 0 {
			return nil
		}

		if err = s.deliver(events); err != nil {
			return err
		}
	}
}

// deliver skips versions that were delivered before and hands the rest to the subscriber.
func (s *subscription) deliver(events eventstore.RecordedEvents) error {
	fresh := make(eventstore.RecordedEvents, 0, len(events))
	for _, event := range events {
		if event.StreamVersion > s.delivered {
			fresh = append(fresh, event)
		}
	}

	if len(fresh) == 0 {
		return nil
	}

	if err := s.subscriber.HandleEvents(s.ctx, s.key.subscriptionName, fresh); err != nil {
		s.registry.logError(logMsgSubscriberFailed, err,
			logAttrStreamName, s.key.streamName,
			logAttrSubscriptionName, s.key.subscriptionName,
		)

		return errors.Join(ErrSubscriberFailed, err)
	}

	s.delivered = fresh[len(fresh)-1].StreamVersion

	return nil
}
