package pebbleengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

var ErrEmptyDataDir = errors.New("pebble: Options.DataDir is required")
var ErrCorruptValue = errors.New("pebble: corrupt stored value")
var ErrEngineClosed = errors.New("pebble: engine is closed")

const (
	logMsgStreamCreated  = "pebble: stream created"
	logMsgEventsAppended = "pebble: events appended"
	logMsgAppendConflict = "pebble: append does not continue the stream"

	logAttrStreamName    = "stream_name"
	logAttrStreamID      = "stream_id"
	logAttrStreamVersion = "stream_version"
	logAttrEventCount    = "event_count"
)

// Options configures the Pebble engine.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Sync requests a WAL fsync for every committed batch.
	Sync bool
	// PebbleOptions allows advanced tuning of Pebble. If nil, Pebble's defaults are used.
	PebbleOptions *pebble.Options
	// Logger is optional.
	Logger eventstore.Logger
}

// Engine is a Storage and Writer backed by one Pebble database.
//
// Creating a stream and appending to it are read-check-write sequences on the keyspace,
// so they are serialized by a mutex. Reads go straight to Pebble.
type Engine struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	logger    eventstore.Logger

	mu     sync.Mutex
	closed bool
}

// Open creates or opens the Pebble database in opts.DataDir.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, ErrEmptyDataDir
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	return &Engine{
		db:        db,
		writeOpts: writeOpts,
		logger:    opts.Logger,
	}, nil
}

// Close closes the Pebble database. It is safe to call more than once; the engine must not
// be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	return e.db.Close()
}

// CreateStream implements eventstore.Storage.
func (e *Engine) CreateStream(ctx context.Context, streamName string) (eventstore.StreamID, error) {
	if streamName == "" {
		return 0, eventstore.ErrEmptyStreamName
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrEngineClosed
	}

	_, found, err := e.getUint64(keyName(streamName))
	if err != nil {
		return 0, errors.Join(eventstore.ErrCreatingStreamFailed, err)
	}

	if found {
		return 0, eventstore.ErrStreamAlreadyExists
	}

	lastID, _, err := e.getUint64(keySequence())
	if err != nil {
		return 0, errors.Join(eventstore.ErrCreatingStreamFailed, err)
	}

	streamID := eventstore.StreamID(lastID + 1)

	batch := e.db.NewBatch()
	defer batch.Close()

	_ = batch.Set(keySequence(), encodeUint64(uint64(streamID)), nil)
	_ = batch.Set(keyName(streamName), encodeUint64(uint64(streamID)), nil)
	_ = batch.Set(keyVersion(streamID), encodeUint64(0), nil)

	if err = batch.Commit(e.writeOpts); err != nil {
		return 0, errors.Join(eventstore.ErrCreatingStreamFailed, err)
	}

	e.logInfo(logMsgStreamCreated, logAttrStreamName, streamName, logAttrStreamID, streamID)

	return streamID, nil
}

// StreamInfo implements eventstore.Storage.
func (e *Engine) StreamInfo(ctx context.Context, streamName string) (eventstore.StreamInfo, error) {
	info := eventstore.StreamInfo{StreamName: streamName}

	if err := ctx.Err(); err != nil {
		return info, err
	}

	id, found, err := e.getUint64(keyName(streamName))
	if err != nil {
		return info, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}

	if !found {
		return info, nil
	}

	version, found, err := e.getUint64(keyVersion(eventstore.StreamID(id)))
	if err != nil {
		return info, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}

	if !found {
		return info, errors.Join(eventstore.ErrQueryingEventsFailed, ErrCorruptValue)
	}

	info.StreamID = eventstore.StreamID(id)
	info.Version = version
	info.Exists = true

	return info, nil
}

// ReadForward implements eventstore.Storage.
func (e *Engine) ReadForward(
	ctx context.Context,
	streamID eventstore.StreamID,
	startVersion eventstore.StreamVersion,
	count uint64,
) (eventstore.StorableEvents, error) {

	if count == 0 {
		return nil, eventstore.ErrInvalidCount
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, found, err := e.getUint64(keyVersion(streamID))
	if err != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}

	if !found {
		return nil, eventstore.ErrStreamNotFound
	}

	iter, err := e.db.NewIter(&pebble.IterOptions{
		LowerBound: keyEntry(streamID, startVersion),
		UpperBound: keyEntriesEnd(streamID),
	})
	if err != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}
	defer iter.Close()

	events := eventstore.StorableEvents{}

	for valid := iter.First(); valid && uint64(len(events)) < count; valid = iter.Next() {
		event, decodeErr := decodeRecord(streamID, versionFromEntryKey(iter.Key()), iter.Value())
		if decodeErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, decodeErr)
		}

		events = append(events, event)
	}

	if err = iter.Error(); err != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}

	return events, nil
}

// AppendToStream implements eventstore.Writer.
//
// The batch must continue the stored version without a gap, otherwise
// eventstore.ErrConcurrencyConflict is returned and nothing is written.
func (e *Engine) AppendToStream(
	ctx context.Context,
	streamID eventstore.StreamID,
	streamName string,
	events eventstore.StorableEvents,
) error {

	if len(events) == 0 {
		return eventstore.ErrNoEvents
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	current, found, err := e.getUint64(keyVersion(streamID))
	if err != nil {
		return errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	if !found {
		return eventstore.ErrStreamNotFound
	}

	batch := e.db.NewBatch()
	defer batch.Close()

	for i, event := range events {
		if event.StreamID != streamID || event.StreamVersion != current+uint64(i)+1 {
			e.logWarn(logMsgAppendConflict,
				logAttrStreamName, streamName,
				logAttrStreamVersion, current,
			)

			return eventstore.ErrConcurrencyConflict
		}

		value, encodeErr := encodeRecord(event)
		if encodeErr != nil {
			return errors.Join(eventstore.ErrAppendingEventFailed, encodeErr)
		}

		_ = batch.Set(keyEntry(streamID, event.StreamVersion), value, nil)
	}

	newVersion := current + uint64(len(events))
	_ = batch.Set(keyVersion(streamID), encodeUint64(newVersion), nil)

	if err = batch.Commit(e.writeOpts); err != nil {
		return errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	e.logDebug(logMsgEventsAppended,
		logAttrStreamName, streamName,
		logAttrStreamVersion, newVersion,
		logAttrEventCount, len(events),
	)

	return nil
}

// getUint64 copies out an 8-byte value. found is false if the key doesn't exist.
func (e *Engine) getUint64(key []byte) (value uint64, found bool, err error) {
	raw, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, err
	}
	defer closer.Close()

	value, err = decodeUint64(raw)
	if err != nil {
		return 0, false, fmt.Errorf("key %q: %w", key, err)
	}

	return value, true, nil
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
