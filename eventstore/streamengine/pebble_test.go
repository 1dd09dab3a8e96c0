package streamengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/pebbleengine"
	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore/streamengine"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func givenPebbleEngine(t *testing.T, dir string) *pebbleengine.Engine {
	t.Helper()

	engine, err := pebbleengine.Open(pebbleengine.Options{DataDir: dir})
	require.NoError(t, err, "error in arranging the pebble engine")
	t.Cleanup(func() { _ = engine.Close() })

	return engine
}

func Test_Append_When_BackedByPebble(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenPebbleEngine(t, t.TempDir())
	directory, err := NewDirectory(engine, engine, helper.NewFixtureSerializer(t))
	require.NoError(t, err)
	t.Cleanup(directory.Shutdown)

	controller, err := directory.Stream(helper.GivenUniqueStreamName(t))
	require.NoError(t, err)

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 3)
	givenEventsWereAppended(t, ctx, controller, 3, 2)

	// act
	conflictErr := controller.Append(ctx, 3, helper.FixtureInputEvents(1))
	events, readErr := controller.ReadForward(ctx, 1, 10)

	// assert
	assert.ErrorIs(t, conflictErr, ErrWrongExpectedVersion)
	require.NoError(t, readErr)
	assert.Equal(t, []StreamVersion{1, 2, 3, 4, 5}, helper.Versions(events))
	assert.Equal(t, helper.AmountDeposited{AccountID: "4711", Amount: 2}, events[4].Data)
}

func Test_StreamForward_When_BackedByPebble(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenPebbleEngine(t, t.TempDir())
	controller, err := NewController(helper.GivenUniqueStreamName(t), engine, engine, helper.NewFixtureSerializer(t))
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 5)

	// act
	forward, err := controller.StreamForward(ctx, 1, 2)
	require.NoError(t, err)

	var pulled [][]StreamVersion
	for {
		batch, pullErr := forward.NextBatch(ctx)
		require.NoError(t, pullErr)
		pulled = append(pulled, helper.Versions(batch))

		if len(batch) == 0 {
			break
		}
	}

	// assert
	assert.Equal(t, [][]StreamVersion{{1, 2}, {3, 4}, {5}, {}}, pulled)
}

func Test_NewController_When_PebbleDatabaseIsReopened(t *testing.T) {
	// setup
	ctx := testContext(t)
	dir := t.TempDir()
	streamName := helper.GivenUniqueStreamName(t)

	// arrange
	engine, err := pebbleengine.Open(pebbleengine.Options{DataDir: dir, Sync: true})
	require.NoError(t, err)

	first, err := NewController(streamName, engine, engine, helper.NewFixtureSerializer(t))
	require.NoError(t, err)
	givenEventsWereAppended(t, ctx, first, 0, 4)
	first.Shutdown()
	require.NoError(t, engine.Close())

	// act
	reopened := givenPebbleEngine(t, dir)
	second, err := NewController(streamName, reopened, reopened, helper.NewFixtureSerializer(t))
	require.NoError(t, err)
	t.Cleanup(second.Shutdown)

	appendErr := second.Append(ctx, 4, helper.FixtureInputEvents(1))

	// assert
	require.NoError(t, appendErr)
	assert.Equal(t, StreamVersion(5), versionOf(t, ctx, second))
}
