package streamengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore/streamengine"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func givenController(t *testing.T, store *helper.InMemoryStore, options ...Option) *Controller {
	t.Helper()

	return givenControllerWithSerializer(t, store, helper.NewFixtureSerializer(t), options...)
}

func givenControllerWithSerializer(
	t *testing.T,
	store *helper.InMemoryStore,
	serializer Serializer,
	options ...Option,
) *Controller {

	t.Helper()

	controller, err := NewController(helper.GivenUniqueStreamName(t), store, store, serializer, options...)
	require.NoError(t, err, "error in arranging the controller")
	t.Cleanup(controller.Shutdown)

	return controller
}

func givenEventsWereAppended(t *testing.T, ctx context.Context, controller *Controller, expectedVersion StreamVersion, n int) {
	t.Helper()

	err := controller.Append(ctx, expectedVersion, helper.FixtureInputEvents(n))
	require.NoError(t, err, "error in arranging test data")
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func versionOf(t *testing.T, ctx context.Context, controller *Controller) StreamVersion {
	t.Helper()

	version, err := controller.Version(ctx)
	require.NoError(t, err)

	return version
}

func givenControllerFor(t *testing.T, store *helper.InMemoryStore, streamName string, options ...Option) *Controller {
	t.Helper()

	controller, err := NewController(streamName, store, store, helper.NewFixtureSerializer(t), options...)
	require.NoError(t, err, "error in arranging the controller")
	t.Cleanup(controller.Shutdown)

	return controller
}
