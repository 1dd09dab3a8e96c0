package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var ErrCreatingSchemaFailed = errors.New("creating the schema failed")

const streamsTableDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
    stream_id BIGSERIAL PRIMARY KEY,
    stream_name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT %[2]s UNIQUE (stream_name)
)`

const eventsTableDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
    sequence_number BIGSERIAL PRIMARY KEY,
    stream_id BIGINT NOT NULL REFERENCES %[2]s (stream_id),
    stream_version BIGINT NOT NULL,
    event_id UUID NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    correlation_id UUID NOT NULL,
    causation_id UUID NOT NULL,
    payload BYTEA NOT NULL,
    metadata BYTEA,
    occurred_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT %[3]s UNIQUE (stream_id, stream_version)
)`

// SchemaStatements returns the DDL statements for the configured table names, in execution order.
// All statements are idempotent.
func (es *EventStore) SchemaStatements() []string {
	streamsTable := sanitizeTableName(es.streamsTableName)
	eventsTable := sanitizeTableName(es.eventsTableName)

	return []string{
		fmt.Sprintf(streamsTableDDL, streamsTable, constraintName(es.streamsTableName, "stream_name_key")),
		fmt.Sprintf(eventsTableDDL, eventsTable, streamsTable, constraintName(es.eventsTableName, "stream_version_key")),
	}
}

// CreateSchema creates the streams and events tables unless they already exist.
func (es *EventStore) CreateSchema(ctx context.Context) error {
	for _, statement := range es.SchemaStatements() {
		if _, err := es.db.Exec(ctx, statement); err != nil {
			es.logError(ctx, logMsgCreateSchemaFailed, err)

			return errors.Join(ErrCreatingSchemaFailed, err)
		}
	}

	es.logOperation(ctx, logMsgSchemaCreated)

	return nil
}

// sanitizeTableName quotes every part of a possibly schema qualified table name.
func sanitizeTableName(tableName string) string {
	return pgx.Identifier(strings.Split(tableName, ".")).Sanitize()
}

// constraintName derives a quoted constraint name from the unqualified table name.
func constraintName(tableName string, suffix string) string {
	parts := strings.Split(tableName, ".")

	return pgx.Identifier{parts[len(parts)-1] + "_" + suffix}.Sanitize()
}
