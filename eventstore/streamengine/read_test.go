package streamengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func Test_ReadForward_When_StreamWasNeverCreated(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	controller := givenController(t, store)

	// act
	events, err := controller.ReadForward(ctx, 1, 10)

	// assert
	assert.ErrorIs(t, err, ErrStreamNotFound)
	assert.Empty(t, events)
	assert.Equal(t, 0, store.Counts().ReadForward, "storage must not be touched")
}

func Test_ReadForward_When_CountIsZero(t *testing.T) {
	// setup
	ctx := testContext(t)
	controller := givenController(t, helper.NewInMemoryStore())

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 1)

	// act
	_, err := controller.ReadForward(ctx, 1, 0)

	// assert
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func Test_ReadForward_Decodes_PayloadAndMetadata(t *testing.T) {
	// setup
	ctx := testContext(t)
	controller := givenController(t, helper.NewInMemoryStore())

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 2)

	// act
	events, err := controller.ReadForward(ctx, 2, 10)

	// assert
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StreamVersion(2), events[0].StreamVersion)
	assert.Equal(t, helper.AmountDepositedEventType, events[0].EventType)
	assert.Equal(t, helper.AmountDeposited{AccountID: "4711", Amount: 2}, events[0].Data)
	assert.Equal(t, map[string]any{"requestId": "request-2"}, events[0].Metadata)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func Test_ReadForward_Returns_FewerEvents_Than_Requested(t *testing.T) {
	// setup
	ctx := testContext(t)
	controller := givenController(t, helper.NewInMemoryStore())

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 3)

	// act
	partial, partialErr := controller.ReadForward(ctx, 2, 10)
	beyond, beyondErr := controller.ReadForward(ctx, 4, 10)

	// assert
	require.NoError(t, partialErr)
	assert.Equal(t, []StreamVersion{2, 3}, helper.Versions(partial))
	require.NoError(t, beyondErr)
	assert.Empty(t, beyond)
}

func Test_ReadForward_When_Storage_Fails(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	controller := givenController(t, store)

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 1)
	store.FailNextReadForward(helper.ErrInjected)

	// act
	_, err := controller.ReadForward(ctx, 1, 10)

	// assert
	assert.Equal(t, helper.ErrInjected, err)
}

func Test_ReadForward_When_Decoding_Fails(t *testing.T) {
	// setup
	ctx := testContext(t)
	serializer := helper.NewSerializerStub(helper.NewFixtureSerializer(t))
	controller := givenControllerWithSerializer(t, helper.NewInMemoryStore(), serializer)

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 1)
	serializer.FailNextDeserialize(helper.ErrInjected)

	// act
	_, err := controller.ReadForward(ctx, 1, 10)

	// assert
	assert.ErrorIs(t, err, ErrDecodingEventFailed)
	assert.ErrorIs(t, err, helper.ErrInjected)
}

func Test_ReadForward_When_StreamExistsInStorage_BeforeTheControllerStarts(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()

	// arrange
	controller := givenController(t, store)
	require.NoError(t, controller.Append(ctx, 0, helper.FixtureInputEvents(4)))

	restarted := givenControllerFor(t, store, controller.StreamName())

	// act
	events, err := restarted.ReadForward(ctx, 1, 10)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []StreamVersion{1, 2, 3, 4}, helper.Versions(events))
	assert.Equal(t, StreamVersion(4), versionOf(t, ctx, restarted))
}
