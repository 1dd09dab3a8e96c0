package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	. "github.com/AntonStoeckl/stream-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/streamengine"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/helper"
	"github.com/AntonStoeckl/stream-eventstore-go/testutil/postgresengine/config"
)

const (
	adapterPGX  = "pgx.pool"
	adapterSQL  = "sql.db"
	adapterSQLX = "sqlx.db"
)

var adapterTypes = []string{adapterPGX, adapterSQL, adapterSQLX}

func givenEventStore(t *testing.T, adapterType string, options ...Option) *EventStore {
	t.Helper()

	var es *EventStore
	var err error

	switch adapterType {
	case adapterPGX:
		es, err = NewEventStoreFromPGXPool(config.NewPGXPool(t), options...)
	case adapterSQL:
		es, err = NewEventStoreFromSQLDB(config.NewSQLDB(t), options...)
	case adapterSQLX:
		es, err = NewEventStoreFromSQLX(config.NewSQLX(t), options...)
	default:
		t.Fatalf("unsupported adapter type: %s", adapterType)
	}

	require.NoError(t, err, "creating the event store failed")
	require.NoError(t, es.CreateSchema(context.Background()), "creating the schema failed")

	return es
}

func givenStreamWasCreated(t *testing.T, ctx context.Context, es *EventStore) (StreamID, string) {
	t.Helper()

	streamName := helper.GivenUniqueStreamName(t)
	streamID, err := es.CreateStream(ctx, streamName)
	require.NoError(t, err, "error in arranging the stream")

	return streamID, streamName
}

func givenEventsWereWritten(t *testing.T, ctx context.Context, es *EventStore, streamID StreamID, streamName string, from StreamVersion, n int) {
	t.Helper()

	err := es.AppendToStream(ctx, streamID, streamName, helper.FixtureStorableEvents(t, streamID, from, n))
	require.NoError(t, err, "error in arranging test data")
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func Test_CreateStream_When_NameIsNew(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// act
			streamID, streamName := givenStreamWasCreated(t, ctx, es)
			info, err := es.StreamInfo(ctx, streamName)

			// assert
			require.NoError(t, err)
			assert.True(t, info.Exists)
			assert.Equal(t, streamID, info.StreamID)
			assert.Equal(t, StreamVersion(0), info.Version)
		})
	}
}

func Test_CreateStream_When_NameIsTaken(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// arrange
			_, streamName := givenStreamWasCreated(t, ctx, es)

			// act
			_, err := es.CreateStream(ctx, streamName)

			// assert
			assert.ErrorIs(t, err, ErrStreamAlreadyExists)
		})
	}
}

func Test_StreamInfo_When_StreamWasNeverCreated(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// act
			info, err := es.StreamInfo(ctx, helper.GivenUniqueStreamName(t))

			// assert
			require.NoError(t, err)
			assert.False(t, info.Exists)
			assert.Equal(t, StreamVersion(0), info.Version)
		})
	}
}

func Test_AppendToStream_When_BatchContinuesTheStream(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// arrange
			streamID, streamName := givenStreamWasCreated(t, ctx, es)
			givenEventsWereWritten(t, ctx, es, streamID, streamName, 1, 3)

			// act
			err := es.AppendToStream(ctx, streamID, streamName, helper.FixtureStorableEvents(t, streamID, 4, 2))

			// assert
			require.NoError(t, err)

			info, infoErr := es.StreamInfo(ctx, streamName)
			require.NoError(t, infoErr)
			assert.Equal(t, StreamVersion(5), info.Version)
		})
	}
}

func Test_AppendToStream_When_StreamHasMovedOn(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// arrange
			streamID, streamName := givenStreamWasCreated(t, ctx, es)
			givenEventsWereWritten(t, ctx, es, streamID, streamName, 1, 3)

			// act
			err := es.AppendToStream(ctx, streamID, streamName, helper.FixtureStorableEvents(t, streamID, 3, 2))

			// assert
			assert.ErrorIs(t, err, ErrConcurrencyConflict)

			events, readErr := es.ReadForward(ctx, streamID, 1, 10)
			require.NoError(t, readErr)
			assert.Len(t, events, 3)
		})
	}
}

func Test_AppendToStream_When_StreamWasNeverCreated(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// act
			err := es.AppendToStream(ctx, -1, "account-unknown", helper.FixtureStorableEvents(t, -1, 1, 1))

			// assert
			assert.ErrorIs(t, err, ErrStreamNotFound)
		})
	}
}

func Test_AppendToStream_When_WritersRaceForTheSameVersion(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)
			const writers = 8

			// arrange
			streamID, streamName := givenStreamWasCreated(t, ctx, es)
			givenEventsWereWritten(t, ctx, es, streamID, streamName, 1, 2)

			// act
			results := make([]error, writers)
			group := errgroup.Group{}
			for i := 0; i < writers; i++ {
				group.Go(func() error {
					results[i] = es.AppendToStream(ctx, streamID, streamName, helper.FixtureStorableEvents(t, streamID, 3, 1))
					return nil
				})
			}
			_ = group.Wait()

			// assert
			succeeded := 0
			for _, err := range results {
				if err == nil {
					succeeded++
					continue
				}

				assert.ErrorIs(t, err, ErrConcurrencyConflict)
			}

			assert.Equal(t, 1, succeeded)

			info, infoErr := es.StreamInfo(ctx, streamName)
			require.NoError(t, infoErr)
			assert.Equal(t, StreamVersion(3), info.Version)
		})
	}
}

func Test_ReadForward_When_RangeIsInsideTheStream(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// arrange
			streamID, streamName := givenStreamWasCreated(t, ctx, es)
			written := helper.FixtureStorableEvents(t, streamID, 1, 6)
			written[2].CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			written[2].CorrelationID = helper.GivenUniqueID(t)
			require.NoError(t, es.AppendToStream(ctx, streamID, streamName, written))

			// act
			events, err := es.ReadForward(ctx, streamID, 2, 3)

			// assert
			require.NoError(t, err)
			require.Len(t, events, 3)
			assert.Equal(t, StreamVersion(2), events[0].StreamVersion)
			assert.Equal(t, StreamVersion(4), events[2].StreamVersion)

			third := events[1]
			assert.Equal(t, written[2].EventID, third.EventID)
			assert.Equal(t, written[2].CorrelationID, third.CorrelationID)
			assert.Equal(t, streamID, third.StreamID)
			assert.JSONEq(t, string(written[2].Data), string(third.Data))
			assert.JSONEq(t, string(written[2].Metadata), string(third.Metadata))
			assert.True(t, written[2].CreatedAt.Equal(third.CreatedAt))
		})
	}
}

func Test_ReadForward_When_StreamIsEmptyOrUnknown(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)

			// arrange
			streamID, _ := givenStreamWasCreated(t, ctx, es)

			// act
			empty, emptyErr := es.ReadForward(ctx, streamID, 1, 10)
			_, unknownErr := es.ReadForward(ctx, -1, 1, 10)

			// assert
			require.NoError(t, emptyErr)
			assert.Empty(t, empty)
			assert.ErrorIs(t, unknownErr, ErrStreamNotFound)
		})
	}
}

func Test_ReadForward_When_ReplicaIsConfigured(t *testing.T) {
	// setup
	ctx := testContext(t)
	primary := config.NewPGXPool(t)
	replica := config.NewPGXReplicaPool(t)

	es, err := NewEventStoreFromPGXPoolAndReplica(primary, replica)
	require.NoError(t, err)
	require.NoError(t, es.CreateSchema(ctx))

	// arrange
	streamID, streamName := givenStreamWasCreated(t, ctx, es)
	givenEventsWereWritten(t, ctx, es, streamID, streamName, 1, 2)

	// act
	events, readErr := es.ReadForward(WithStrongConsistency(ctx), streamID, 1, 10)

	// assert
	require.NoError(t, readErr)
	assert.Len(t, events, 2)
}

func Test_Controller_When_BackedByPostgres(t *testing.T) {
	for _, adapterType := range adapterTypes {
		t.Run(adapterType, func(t *testing.T) {
			// setup
			ctx := testContext(t)
			es := givenEventStore(t, adapterType)
			directory, err := streamengine.NewDirectory(es, es, helper.NewFixtureSerializer(t))
			require.NoError(t, err)
			t.Cleanup(directory.Shutdown)

			controller, err := directory.Stream(helper.GivenUniqueStreamName(t))
			require.NoError(t, err)

			// arrange
			require.NoError(t, controller.Append(ctx, 0, helper.FixtureInputEvents(3)))
			require.NoError(t, controller.Append(ctx, 3, helper.FixtureInputEvents(2)))

			// act
			conflictErr := controller.Append(ctx, 3, helper.FixtureInputEvents(1))
			events, readErr := controller.ReadForward(ctx, 1, 10)

			// assert
			assert.ErrorIs(t, conflictErr, ErrWrongExpectedVersion)
			require.NoError(t, readErr)
			assert.Equal(t, []StreamVersion{1, 2, 3, 4, 5}, helper.Versions(events))
			assert.Equal(t, helper.AmountDeposited{AccountID: "4711", Amount: 1}, events[3].Data)
		})
	}
}
