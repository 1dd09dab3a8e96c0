// Package pebbleengine implements eventstore.Storage and eventstore.Writer on an embedded
// Pebble database, for single-node deployments that keep their events on local disk.
//
// Layout of the keyspace, all integers big-endian:
//
//	'q'                       -> last assigned stream id
//	'n' + stream name         -> stream id
//	'v' + stream id           -> stream version
//	'e' + stream id + version -> encoded event record
//
// Entries of one stream therefore sort by version and are read with a single bounded iterator.
// An append writes its entries and the new stream version in one atomic batch.
//
//	engine, err := pebbleengine.Open(pebbleengine.Options{DataDir: "/var/lib/events", Sync: true})
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	directory, err := streamengine.NewDirectory(engine, engine, eventstore.NewJSONSerializer())
package pebbleengine
