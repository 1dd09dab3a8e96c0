package config

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
)

// NewSQLDB opens a *sql.DB on the test database with the lib/pq driver.
// The database handle is closed when t finishes.
func NewSQLDB(t testing.TB) *sql.DB {
	t.Helper()

	const defaultMaxOpenConnections = 20
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", PostgresTestDSN(t))
	require.NoError(t, err, "failed to open the database connection")
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	require.NoError(t, db.PingContext(context.Background()), "failed to ping the database")

	return db
}
