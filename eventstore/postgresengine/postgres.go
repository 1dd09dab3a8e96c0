package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-eventstore-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultStreamsTableName = "streams"
	defaultEventsTableName  = "events"
	logActionCreateStream   = "create stream"
	logActionStreamInfo     = "stream info"
	logActionReadForward    = "read forward"
	logActionStreamExists   = "stream exists"
	logActionAppend         = "append"
)

var (
	_ eventstore.Storage = (*EventStore)(nil)
	_ eventstore.Writer  = (*EventStore)(nil)
)

// EventStore is the PostgreSQL storage engine. It implements eventstore.Storage and
// eventstore.Writer and is safe for concurrent use by many stream controllers.
type EventStore struct {
	db               adapters.DBAdapter
	streamsTableName string
	eventsTableName  string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

type eventRow struct {
	eventID       string
	streamVersion int64
	eventType     string
	correlationID string
	causationID   string
	payload       []byte
	metadata      []byte
	occurredAt    time.Time
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore using a primary and a replica pgx Pool.
// Reads run on the replica only if the context carries eventstore.WithEventualConsistency.
func NewEventStoreFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if primary == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:               db,
		streamsTableName: defaultStreamsTableName,
		eventsTableName:  defaultEventsTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// CreateStream inserts the stream record and returns the id the database generated for it.
// Returns eventstore.ErrStreamAlreadyExists if the name is taken.
func (es *EventStore) CreateStream(ctx context.Context, streamName string) (eventstore.StreamID, error) {
	if streamName == "" {
		return 0, eventstore.ErrEmptyStreamName
	}

	observer, ctx := es.startObserving(ctx, operationCreateStream, spanNameCreateStream, metricCreateStreamDuration,
		map[string]string{spanAttrStreamName: streamName})

	sqlQuery, args, buildErr := es.buildCreateStreamQuery(streamName)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeBuildQuery)

		return 0, buildErr
	}

	ctx = eventstore.WithStrongConsistency(ctx)
	rows, queryErr := es.query(ctx, sqlQuery, args, logActionCreateStream)
	if queryErr != nil {
		if adapters.IsUniqueViolation(queryErr) {
			es.logWarn(ctx, logMsgStreamExists, logAttrStreamName, streamName)
			observer.finishError(errorTypeStreamExists)

			return 0, eventstore.ErrStreamAlreadyExists
		}

		observer.finishError(errorTypeDatabaseQuery)

		return 0, errors.Join(eventstore.ErrCreatingStreamFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	var streamID eventstore.StreamID
	found, scanErr := es.scanSingleRow(rows, &streamID)
	if scanErr != nil {
		if adapters.IsUniqueViolation(scanErr) {
			es.logWarn(ctx, logMsgStreamExists, logAttrStreamName, streamName)
			observer.finishError(errorTypeStreamExists)

			return 0, eventstore.ErrStreamAlreadyExists
		}

		es.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeRowScan)

		return 0, errors.Join(eventstore.ErrCreatingStreamFailed, scanErr)
	}

	if !found {
		observer.finishError(errorTypeRowScan)
		return 0, eventstore.ErrCreatingStreamFailed
	}

	duration := observer.finishSuccess("", 0)
	es.logOperation(ctx, logMsgStreamCreated,
		logAttrStreamName, streamName,
		logAttrStreamID, streamID,
		logAttrDurationMS, es.toMilliseconds(duration),
	)

	return streamID, nil
}

// StreamInfo reports the id and the highest stream version of streamName.
// It always reads from the primary.
func (es *EventStore) StreamInfo(ctx context.Context, streamName string) (eventstore.StreamInfo, error) {
	info := eventstore.StreamInfo{StreamName: streamName}

	observer, ctx := es.startObserving(ctx, operationStreamInfo, spanNameStreamInfo, metricQueryDuration,
		map[string]string{spanAttrStreamName: streamName})

	sqlQuery, args, buildErr := es.buildStreamInfoQuery(streamName)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeBuildQuery)

		return info, buildErr
	}

	ctx = eventstore.WithStrongConsistency(ctx)
	rows, queryErr := es.query(ctx, sqlQuery, args, logActionStreamInfo)
	if queryErr != nil {
		observer.finishError(errorTypeDatabaseQuery)
		return info, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	var streamID eventstore.StreamID
	var version int64

	found, scanErr := es.scanSingleRow(rows, &streamID, &version)
	if scanErr != nil {
		es.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeRowScan)

		return info, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	observer.finishSuccess("", 0)

	if !found {
		return info, nil
	}

	info.StreamID = streamID
	info.Version = eventstore.StreamVersion(version) //nolint:gosec
	info.Exists = true

	return info, nil
}

// ReadForward returns up to count events of the stream, ascending, starting at startVersion.
//
// It reads from the replica if one is configured and ctx carries eventstore.WithEventualConsistency.
// Returns eventstore.ErrStreamNotFound for an unknown streamID.
func (es *EventStore) ReadForward(
	ctx context.Context,
	streamID eventstore.StreamID,
	startVersion eventstore.StreamVersion,
	count uint64,
) (eventstore.StorableEvents, error) {

	if count == 0 {
		return nil, eventstore.ErrInvalidCount
	}

	observer, ctx := es.startObserving(ctx, operationReadForward, spanNameReadForward, metricQueryDuration,
		map[string]string{spanAttrStreamID: fmt.Sprintf("%d", streamID)})

	sqlQuery, args, buildErr := es.buildReadForwardQuery(streamID, startVersion, count)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStreamID, streamID)
		observer.finishError(errorTypeBuildQuery)

		return nil, buildErr
	}

	rows, queryErr := es.query(ctx, sqlQuery, args, logActionReadForward)
	if queryErr != nil {
		observer.finishError(errorTypeDatabaseQuery)
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	events, scanErr := es.scanEvents(streamID, rows)
	es.closeRows(ctx, rows)

	if scanErr != nil {
		es.logError(ctx, logMsgScanRowFailed, scanErr, logAttrStreamID, streamID)
		observer.finishError(errorTypeRowScan)

		return nil, scanErr
	}

	if len(events) == 0 {
		exists, existsErr := es.streamExists(ctx, streamID)
		if existsErr != nil {
			observer.finishError(errorTypeDatabaseQuery)
			return nil, existsErr
		}

		if !exists {
			observer.finishError(errorTypeStreamNotFound)
			return nil, eventstore.ErrStreamNotFound
		}
	}

	duration := observer.finishSuccess(metricEventsQueried, len(events))
	es.logOperation(ctx, logMsgEventsRead,
		logAttrStreamID, streamID,
		logAttrStartVersion, startVersion,
		logAttrEventCount, len(events),
		logAttrDurationMS, es.toMilliseconds(duration),
	)

	return events, nil
}

// AppendToStream writes the batch atomically if it continues the stream's current version.
//
// The versions in the batch must be contiguous. If the stream has moved on, or a concurrent
// writer inserted the same version first, eventstore.ErrConcurrencyConflict is returned and
// nothing is written. Returns eventstore.ErrStreamNotFound if the stream was never created.
func (es *EventStore) AppendToStream(
	ctx context.Context,
	streamID eventstore.StreamID,
	streamName string,
	events eventstore.StorableEvents,
) error {

	if len(events) == 0 {
		return eventstore.ErrNoEvents
	}

	expectedVersion := events[0].StreamVersion - 1

	observer, ctx := es.startObserving(ctx, operationAppend, spanNameAppend, metricAppendDuration,
		map[string]string{
			spanAttrStreamName:      streamName,
			spanAttrEventCount:      fmt.Sprintf("%d", len(events)),
			spanAttrExpectedVersion: fmt.Sprintf("%d", expectedVersion),
		})

	if !isContiguousBatch(streamID, events) {
		es.logWarn(ctx, logMsgConcurrencyConflict,
			logAttrStreamName, streamName,
			logAttrExpectedVersion, expectedVersion,
		)
		observer.finishConflict()

		return eventstore.ErrConcurrencyConflict
	}

	sqlQuery, args, buildErr := es.buildAppendQuery(streamID, events, expectedVersion)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeBuildQuery)

		return buildErr
	}

	start := time.Now()
	result, execErr := es.db.Exec(ctx, sqlQuery, args...)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, time.Since(start))

	if execErr != nil {
		switch {
		case adapters.IsUniqueViolation(execErr):
			es.logWarn(ctx, logMsgConcurrencyConflict,
				logAttrStreamName, streamName,
				logAttrExpectedVersion, expectedVersion,
			)
			observer.finishConflict()

			return eventstore.ErrConcurrencyConflict

		case adapters.IsForeignKeyViolation(execErr):
			observer.finishError(errorTypeStreamNotFound)
			return eventstore.ErrStreamNotFound
		}

		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrStreamName, streamName, logAttrQuery, sqlQuery)
		observer.finishError(errorTypeDatabaseExec)

		return errors.Join(eventstore.ErrAppendingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr, logAttrStreamName, streamName)
		observer.finishError(errorTypeRowsAffected)

		return errors.Join(eventstore.ErrAppendingEventFailed, rowsAffectedErr)
	}

	if rowsAffected < int64(len(events)) {
		es.logWarn(ctx, logMsgConcurrencyConflict,
			logAttrStreamName, streamName,
			logAttrExpectedVersion, expectedVersion,
			logAttrRowsAffected, rowsAffected,
		)
		observer.finishConflict()

		return eventstore.ErrConcurrencyConflict
	}

	duration := observer.finishSuccess(metricEventsAppended, len(events))
	es.logOperation(ctx, logMsgEventsAppended,
		logAttrStreamName, streamName,
		logAttrEventCount, len(events),
		logAttrDurationMS, es.toMilliseconds(duration),
	)

	return nil
}

func (es *EventStore) streamExists(ctx context.Context, streamID eventstore.StreamID) (bool, error) {
	sqlQuery, args, buildErr := es.buildStreamExistsQuery(streamID)
	if buildErr != nil {
		return false, buildErr
	}

	rows, queryErr := es.query(ctx, sqlQuery, args, logActionStreamExists)
	if queryErr != nil {
		return false, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	var id eventstore.StreamID
	found, scanErr := es.scanSingleRow(rows, &id)
	if scanErr != nil {
		return false, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	return found, nil
}

// query executes sqlQuery and logs it with its duration.
func (es *EventStore) query(ctx context.Context, sqlQuery string, args []any, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery, args...)
	es.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		if !adapters.IsUniqueViolation(queryErr) {
			es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		}

		return nil, queryErr
	}

	return rows, nil
}

// scanSingleRow scans the first row into dest. found is false if there is no row.
func (es *EventStore) scanSingleRow(rows adapters.DBRows, dest ...any) (found bool, err error) {
	if !rows.Next() {
		return false, rows.Err()
	}

	if err = rows.Scan(dest...); err != nil {
		return false, err
	}

	return true, nil
}

func (es *EventStore) scanEvents(streamID eventstore.StreamID, rows adapters.DBRows) (eventstore.StorableEvents, error) {
	events := eventstore.StorableEvents{}
	row := eventRow{}

	for rows.Next() {
		err := rows.Scan(
			&row.eventID,
			&row.streamVersion,
			&row.eventType,
			&row.correlationID,
			&row.causationID,
			&row.payload,
			&row.metadata,
			&row.occurredAt,
		)
		if err != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, err)
		}

		event, err := row.toStorableEvent(streamID)
		if err != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}

	return events, nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (r eventRow) toStorableEvent(streamID eventstore.StreamID) (eventstore.StorableEvent, error) {
	eventID, err := uuid.Parse(r.eventID)
	if err != nil {
		return eventstore.StorableEvent{}, err
	}

	correlationID, err := uuid.Parse(r.correlationID)
	if err != nil {
		return eventstore.StorableEvent{}, err
	}

	causationID, err := uuid.Parse(r.causationID)
	if err != nil {
		return eventstore.StorableEvent{}, err
	}

	return eventstore.StorableEvent{
		EventID:       eventID,
		StreamID:      streamID,
		StreamVersion: eventstore.StreamVersion(r.streamVersion), //nolint:gosec
		EventType:     r.eventType,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Data:          append([]byte(nil), r.payload...),
		Metadata:      append([]byte(nil), r.metadata...),
		CreatedAt:     r.occurredAt.UTC(),
	}, nil
}

func isContiguousBatch(streamID eventstore.StreamID, events eventstore.StorableEvents) bool {
	if events[0].StreamVersion == 0 {
		return false
	}

	for i, event := range events {
		if event.StreamID != streamID || event.StreamVersion != events[0].StreamVersion+uint64(i) {
			return false
		}
	}

	return true
}
