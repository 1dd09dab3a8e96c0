package streamengine_test

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func Test_Append_Concurrently_With_TheSame_ExpectedVersion(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	controller := givenController(t, store)
	var succeeded, rejected atomic.Int32

	// arrange
	givenEventsWereAppended(t, ctx, controller, 0, 1)

	// act
	group := new(errgroup.Group)
	for i := 0; i < 20; i++ {
		group.Go(func() error {
			err := controller.Append(ctx, 1, helper.FixtureInputEvents(2))

			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrWrongExpectedVersion):
				rejected.Add(1)
			default:
				return err
			}

			return nil
		})
	}

	// assert
	require.NoError(t, group.Wait())
	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(19), rejected.Load())
	assert.Equal(t, StreamVersion(3), versionOf(t, ctx, controller))
	assert.Len(t, store.StoredEvents(controller.StreamName()), 3)
}

func Test_Append_Concurrently_With_Retries_Assigns_ContiguousVersions(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	controller := givenController(t, store)
	const writers, appendsPerWriter = 8, 10

	// act
	group := new(errgroup.Group)
	for w := 0; w < writers; w++ {
		group.Go(func() error {
			for appended := 0; appended < appendsPerWriter; {
				version, err := controller.Version(ctx)
				if err != nil {
					return err
				}

				err = controller.Append(ctx, version, helper.FixtureInputEvents(1))
				switch {
				case err == nil:
					appended++
				case errors.Is(err, ErrWrongExpectedVersion):
					continue
				default:
					return err
				}
			}

			return nil
		})
	}

	// assert
	require.NoError(t, group.Wait())
	assert.Equal(t, StreamVersion(writers*appendsPerWriter), versionOf(t, ctx, controller))

	stored := store.StoredEvents(controller.StreamName())
	require.Len(t, stored, writers*appendsPerWriter)
	for i, event := range stored {
		assert.Equal(t, StreamVersion(i+1), event.StreamVersion)
	}
}

func Test_Streams_Progress_Independently(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	directory := givenDirectory(t, store)
	const streams = 16

	// act
	group := new(errgroup.Group)
	for s := 0; s < streams; s++ {
		group.Go(func() error {
			controller, streamErr := directory.Stream(fmt.Sprintf("stream-%d", s))
			if streamErr != nil {
				return streamErr
			}

			for i := 0; i < 5; i++ {
				if appendErr := controller.Append(ctx, StreamVersion(i), helper.FixtureInputEvents(1)); appendErr != nil {
					return appendErr
				}
			}

			return nil
		})
	}

	// assert
	require.NoError(t, group.Wait())
	assert.Equal(t, streams, directory.Len())

	for s := 0; s < streams; s++ {
		controller, streamErr := directory.Stream(fmt.Sprintf("stream-%d", s))
		require.NoError(t, streamErr)
		assert.Equal(t, StreamVersion(5), versionOf(t, ctx, controller))
	}
}
