// Package adapters provides the database seam of the PostgreSQL event store.
//
// One DBAdapter interface is implemented for pgxpool.Pool, sql.DB and sqlx.DB, so the
// engine builds its statements once and runs them on whichever connection type the caller has.
// The package also classifies constraint violations reported by pgx and by lib/pq.
package adapters
