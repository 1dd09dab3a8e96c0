package config

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
)

// NewSQLX opens a *sqlx.DB on the test database with the lib/pq driver.
// The database handle is closed when t finishes.
func NewSQLX(t testing.TB) *sqlx.DB {
	t.Helper()

	const defaultMaxOpenConnections = 20
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", PostgresTestDSN(t))
	require.NoError(t, err, "failed to open the database connection")
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	require.NoError(t, db.PingContext(context.Background()), "failed to ping the database")

	return db
}
