package config

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// PostgresPGXPoolConfig creates a pgxpool.Config for dsn.
func PostgresPGXPoolConfig(t testing.TB, dsn string) *pgxpool.Config {
	const defaultMaxConnections = int32(20)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err, "failed to parse the pgx pool config")

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig
}

// NewPGXPool connects a pgx pool to the test database. The pool is closed when t finishes.
func NewPGXPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	return newPGXPool(t, PostgresTestDSN(t))
}

// NewPGXReplicaPool connects a pgx pool to the replica of the test database.
func NewPGXReplicaPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	return newPGXPool(t, PostgresTestReplicaDSN(t))
}

func newPGXPool(t testing.TB, dsn string) *pgxpool.Pool {
	pool, err := pgxpool.NewWithConfig(context.Background(), PostgresPGXPoolConfig(t, dsn))
	require.NoError(t, err, "failed to create the pgx pool")
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(context.Background()), "failed to ping the database")

	return pool
}
