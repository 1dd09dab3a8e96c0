// Package config provides PostgreSQL connections for the engine's integration tests.
//
// The test database is taken from the POSTGRES_TEST_DSN environment variable; tests that need
// it are skipped when it is unset, unless POSTGRES_TEST_CONTAINER=1 asks for a throwaway
// container started with testcontainers-go. Connections are available for all supported adapters
// (pgxpool.Pool, sql.DB with lib/pq, sqlx.DB) and are closed when the test finishes.
package config
