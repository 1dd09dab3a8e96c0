package streamengine_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore/streamengine"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
)

func givenDirectory(t *testing.T, store *helper.InMemoryStore, options ...Option) *Directory {
	t.Helper()

	directory, err := NewDirectory(store, store, helper.NewFixtureSerializer(t), options...)
	require.NoError(t, err, "error in arranging the directory")
	t.Cleanup(directory.Shutdown)

	return directory
}

func Test_Directory_Returns_TheSameController_PerStreamName(t *testing.T) {
	// setup
	directory := givenDirectory(t, helper.NewInMemoryStore())

	// act
	first, firstErr := directory.Stream("account-1")
	again, againErr := directory.Stream("account-1")
	other, otherErr := directory.Stream("account-2")

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, againErr)
	require.NoError(t, otherErr)
	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, "account-2", other.StreamName())
	assert.Equal(t, 2, directory.Len())
}

func Test_Directory_Creates_AtMostOneController_Under_Contention(t *testing.T) {
	// setup
	directory := givenDirectory(t, helper.NewInMemoryStore())
	var mu sync.Mutex
	seen := make(map[*Controller]struct{})

	// act
	group := new(errgroup.Group)
	for i := 0; i < 32; i++ {
		group.Go(func() error {
			controller, err := directory.Stream("contended")
			if err != nil {
				return err
			}

			mu.Lock()
			seen[controller] = struct{}{}
			mu.Unlock()

			return nil
		})
	}

	// assert
	require.NoError(t, group.Wait())
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, directory.Len())
}

func Test_Directory_When_StreamName_IsEmpty(t *testing.T) {
	// setup
	directory := givenDirectory(t, helper.NewInMemoryStore())

	// act
	_, err := directory.Stream("")

	// assert
	assert.ErrorIs(t, err, ErrEmptyStreamName)
	assert.Equal(t, 0, directory.Len())
}

func Test_NewDirectory_When_An_Option_IsInvalid(t *testing.T) {
	// setup
	store := helper.NewInMemoryStore()

	// act
	directory, err := NewDirectory(store, store, helper.NewFixtureSerializer(t), WithMailboxSize(-5))

	// assert
	assert.ErrorIs(t, err, ErrInvalidMailboxSize)
	assert.Nil(t, directory)
}

func Test_Directory_After_Shutdown(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := helper.NewInMemoryStore()
	directory := givenDirectory(t, store)

	// arrange
	controller, err := directory.Stream("account-1")
	require.NoError(t, err)
	givenEventsWereAppended(t, ctx, controller, 0, 1)

	// act
	directory.Shutdown()

	// assert
	_, streamErr := directory.Stream("account-2")
	assert.ErrorIs(t, streamErr, ErrControllerShutDown)
	_, versionErr := controller.Version(ctx)
	assert.ErrorIs(t, versionErr, ErrControllerShutDown)
}

func Test_Directory_Applies_Options_To_Every_Controller(t *testing.T) {
	// setup
	ctx := testContext(t)
	publisher := helper.NewPublisherSpy()
	directory := givenDirectory(t, helper.NewInMemoryStore(), WithPublisher(publisher))

	// act
	for _, name := range []string{"account-1", "account-2"} {
		controller, err := directory.Stream(name)
		require.NoError(t, err)
		givenEventsWereAppended(t, ctx, controller, 0, 1)
	}

	// assert
	assert.Len(t, publisher.Batches("account-1"), 1)
	assert.Len(t, publisher.Batches("account-2"), 1)
}
