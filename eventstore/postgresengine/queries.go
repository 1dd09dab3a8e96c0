package postgresengine

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	dialectPostgres = "postgres"

	colStreamID      = "stream_id"
	colStreamName    = "stream_name"
	colStreamVersion = "stream_version"
	colEventID       = "event_id"
	colEventType     = "event_type"
	colCorrelationID = "correlation_id"
	colCausationID   = "causation_id"
	colPayload       = "payload"
	colMetadata      = "metadata"
	colOccurredAt    = "occurred_at"
	aliasStreams     = "s"
	aliasEvents      = "e"
	aliasMaxVersion  = "max_version"
	cteContext       = "context"
	cteVals          = "vals"
	castBigint       = "?::bigint"
	castUUID         = "?::uuid"
	castText         = "?::text"
	castBytea        = "?::bytea"
	castTimestamp    = "?::timestamp with time zone"
	castTypeText     = "TEXT"
)

var insertColumns = []any{
	colStreamID,
	colStreamVersion,
	colEventID,
	colEventType,
	colCorrelationID,
	colCausationID,
	colPayload,
	colMetadata,
	colOccurredAt,
}

type (
	sqlQueryString = string
	sqlArgs        = []any
)

func (es *EventStore) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// buildCreateStreamQuery inserts the stream record and returns its generated id.
func (es *EventStore) buildCreateStreamQuery(streamName string) (sqlQueryString, sqlArgs, error) {
	insertStmt := es.builder().
		Insert(goqu.I(es.streamsTableName)).
		Prepared(true).
		Cols(colStreamName).
		Vals(goqu.Vals{streamName}).
		Returning(goqu.C(colStreamID))

	return toSQL(insertStmt.ToSQL())
}

// buildStreamInfoQuery selects the stream id and the highest stream version, 0 for an empty stream.
// A stream that was never created yields no row.
func (es *EventStore) buildStreamInfoQuery(streamName string) (sqlQueryString, sqlArgs, error) {
	streamIDCol := goqu.I(aliasStreams + "." + colStreamID)

	selectStmt := es.builder().
		From(goqu.I(es.streamsTableName).As(aliasStreams)).
		Prepared(true).
		LeftJoin(
			goqu.I(es.eventsTableName).As(aliasEvents),
			goqu.On(goqu.I(aliasEvents+"."+colStreamID).Eq(streamIDCol)),
		).
		Select(
			streamIDCol,
			goqu.COALESCE(goqu.MAX(goqu.I(aliasEvents+"."+colStreamVersion)), 0).As(aliasMaxVersion),
		).
		Where(goqu.I(aliasStreams + "." + colStreamName).Eq(streamName)).
		GroupBy(streamIDCol)

	return toSQL(selectStmt.ToSQL())
}

// buildReadForwardQuery selects up to count events of one stream, ascending, from startVersion.
// UUID columns are cast to text so that every driver scans them into strings.
func (es *EventStore) buildReadForwardQuery(
	streamID eventstore.StreamID,
	startVersion eventstore.StreamVersion,
	count uint64,
) (sqlQueryString, sqlArgs, error) {

	selectStmt := es.builder().
		From(goqu.I(es.eventsTableName)).
		Prepared(true).
		Select(
			goqu.Cast(goqu.C(colEventID), castTypeText).As(colEventID),
			goqu.C(colStreamVersion),
			goqu.C(colEventType),
			goqu.Cast(goqu.C(colCorrelationID), castTypeText).As(colCorrelationID),
			goqu.Cast(goqu.C(colCausationID), castTypeText).As(colCausationID),
			goqu.C(colPayload),
			goqu.C(colMetadata),
			goqu.C(colOccurredAt),
		).
		Where(
			goqu.C(colStreamID).Eq(streamID),
			goqu.C(colStreamVersion).Gte(int64(startVersion)), //nolint:gosec
		).
		Order(goqu.C(colStreamVersion).Asc()).
		Limit(uint(count))

	return toSQL(selectStmt.ToSQL())
}

// buildStreamExistsQuery selects the stream id if a stream with this id was created.
func (es *EventStore) buildStreamExistsQuery(streamID eventstore.StreamID) (sqlQueryString, sqlArgs, error) {
	selectStmt := es.builder().
		From(goqu.I(es.streamsTableName)).
		Prepared(true).
		Select(goqu.C(colStreamID)).
		Where(goqu.C(colStreamID).Eq(streamID))

	return toSQL(selectStmt.ToSQL())
}

// buildAppendQuery inserts all events in one statement, but only if the stream's current
// max version still is expectedVersion. Otherwise the statement inserts no rows.
func (es *EventStore) buildAppendQuery(
	streamID eventstore.StreamID,
	events eventstore.StorableEvents,
	expectedVersion eventstore.StreamVersion,
) (sqlQueryString, sqlArgs, error) {

	if len(events) == 0 {
		return "", nil, eventstore.ErrNoEvents
	}

	builder := es.builder()

	cteStmt := builder.
		From(goqu.I(es.eventsTableName)).
		Select(goqu.MAX(colStreamVersion).As(aliasMaxVersion)).
		Where(goqu.C(colStreamID).Eq(streamID))

	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castBigint, event.StreamID).As(colStreamID),
				goqu.L(castBigint, int64(event.StreamVersion)).As(colStreamVersion), //nolint:gosec
				goqu.L(castUUID, event.EventID.String()).As(colEventID),
				goqu.L(castText, event.EventType).As(colEventType),
				goqu.L(castUUID, event.CorrelationID.String()).As(colCorrelationID),
				goqu.L(castUUID, event.CausationID.String()).As(colCausationID),
				goqu.L(castBytea, event.Data).As(colPayload),
				goqu.L(castBytea, event.Metadata).As(colMetadata),
				goqu.L(castTimestamp, event.CreatedAt).As(colOccurredAt),
			)
	}

	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	valsColumns := make([]any, len(insertColumns))
	for i, col := range insertColumns {
		valsColumns[i] = fmt.Sprintf("%s.%s", cteVals, col)
	}

	insertStmt := builder.
		Insert(goqu.I(es.eventsTableName)).
		Prepared(true).
		Cols(insertColumns...).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(valsColumns...).
				Where(goqu.COALESCE(goqu.C(aliasMaxVersion), 0).Eq(int64(expectedVersion))), //nolint:gosec
		)

	return toSQL(insertStmt.ToSQL())
}

func toSQL(query sqlQueryString, args sqlArgs, err error) (sqlQueryString, sqlArgs, error) {
	if err != nil {
		return "", nil, errors.Join(eventstore.ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}
