package streamengine

import (
	"context"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// Subscribe registers subscriber with the configured SubscriptionRegistry.
//
// startFrom is resolved inside the controller's turn, so Current() means exactly the version
// after all requests that arrived before this one. The registry receives the controller as
// owner and its result is returned unmodified.
//
// Returns eventstore.ErrNoSubscriptionRegistry if the controller was built without one.
func (c *Controller) Subscribe(
	ctx context.Context,
	subscriptionName string,
	subscriber eventstore.Subscriber,
	startFrom eventstore.StartFrom,
) (eventstore.Subscription, error) {

	if c.registry == nil {
		return nil, eventstore.ErrNoSubscriptionRegistry
	}

	var subscription eventstore.Subscription
	var err error

	submitErr := c.submit(ctx, func(ctx context.Context) {
		subscription, err = c.serveSubscribe(ctx, subscriptionName, subscriber, startFrom)
	})
	if submitErr != nil {
		return nil, submitErr
	}

	return subscription, err
}

func (c *Controller) serveSubscribe(
	ctx context.Context,
	subscriptionName string,
	subscriber eventstore.Subscriber,
	startFrom eventstore.StartFrom,
) (eventstore.Subscription, error) {

	observer, ctx := c.startSubscribeObserving(ctx, subscriptionName)

	if err := c.ensureLoaded(ctx); err != nil {
		observer.finishError(errorTypeLoadStream)
		return nil, err
	}

	startVersion := startFrom.Resolve(c.version)

	subscription, err := c.registry.Subscribe(ctx, c.streamName, c, subscriptionName, subscriber, startVersion)
	if err != nil {
		c.logError(ctx, logMsgSubscribeFailed, err,
			logAttrSubscriptionName, subscriptionName,
			logAttrStartFrom, startFrom.String(),
		)
		observer.finishError(errorTypeSubscribe)

		return nil, err
	}

	c.logDebug(ctx, logMsgSubscriptionRegistered,
		logAttrSubscriptionName, subscriptionName,
		logAttrStartFrom, startFrom.String(),
		logAttrStartVersion, startVersion,
	)
	observer.finishSuccess(0, c.version)

	return subscription, nil
}
