package eventstore

import (
	"errors"
)

var ErrWrongExpectedVersion = errors.New("wrong expected version")
var ErrStreamNotFound = errors.New("stream not found")
var ErrStreamAlreadyExists = errors.New("stream already exists")
var ErrConcurrencyConflict = errors.New("concurrency error, no rows were affected")
var ErrNoEvents = errors.New("no events to append")
var ErrInvalidCount = errors.New("count must be positive")
var ErrEmptyStreamName = errors.New("empty stream name supplied")

var ErrEncodingEventFailed = errors.New("encoding event failed")
var ErrDecodingEventFailed = errors.New("decoding event failed")
var ErrLoadingStreamFailed = errors.New("loading stream info failed")
var ErrNoSubscriptionRegistry = errors.New("no subscription registry configured")
var ErrControllerShutDown = errors.New("stream controller is shut down")

var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrQueryingEventsFailed = errors.New("querying events failed")
var ErrAppendingEventFailed = errors.New("appending the event failed")
var ErrCreatingStreamFailed = errors.New("creating the stream failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrBuildingQueryFailed = errors.New("building query failed")

// StreamVersion is the position of an event within its stream; 0 means "no events".
type StreamVersion = uint64

// StreamID is the internal identifier storage assigns to a stream when it is created.
type StreamID = int64

// StreamInfo is what storage knows about a stream name.
// StreamID is only meaningful if Exists is true.
type StreamInfo struct {
	StreamName string
	StreamID   StreamID
	Version    StreamVersion
	Exists     bool
}
