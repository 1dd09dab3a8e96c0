// Package postgresengine implements eventstore.Storage and eventstore.Writer on PostgreSQL.
//
// Streams live in a streams table that assigns the internal stream id, events in an events
// table with a unique (stream_id, stream_version) constraint. An append is a single
// INSERT ... SELECT guarded by a CTE that reads the stream's current max version, so a batch
// is either written completely at the expected position or not at all.
//
// The engine runs on pgxpool.Pool, sql.DB (lib/pq) or sqlx.DB:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		pool,
//		postgresengine.WithEventsTableName("account_events"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//	_ = store.CreateSchema(ctx)
//
//	directory, _ := streamengine.NewDirectory(store, store, eventstore.NewJSONSerializer())
//
// With NewEventStoreFromPGXPoolAndReplica, ReadForward runs on the replica when the context
// carries eventstore.WithEventualConsistency. Everything else always runs on the primary.
package postgresengine
