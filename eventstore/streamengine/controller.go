package streamengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

var ErrNilStorage = errors.New("storage must not be nil")
var ErrNilWriter = errors.New("writer must not be nil")
var ErrNilSerializer = errors.New("serializer must not be nil")

// Controller owns one stream. It serializes all requests for the stream through its mailbox
// and keeps the stream's internal identifier and current version in memory.
//
// All methods are safe for concurrent use; they block until the controller has served the
// request or the caller's context is done.
type Controller struct {
	streamName string
	storage    eventstore.Storage
	writer     eventstore.Writer
	serializer eventstore.Serializer
	registry   eventstore.SubscriptionRegistry
	publisher  eventstore.Publisher
	clock      func() time.Time

	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector

	mailboxSize  int
	mailbox      chan request
	quit         chan struct{}
	stopped      chan struct{}
	shutdownOnce sync.Once

	// owned by the run goroutine
	loaded   bool
	hasID    bool
	streamID eventstore.StreamID
	version  eventstore.StreamVersion
}

type request struct {
	ctx   context.Context
	serve func(ctx context.Context)
	done  chan struct{}
}

// NewController creates a Controller for streamName and starts its goroutine.
// The controller loads the stream's identifier and version before it serves the first request.
func NewController(
	streamName string,
	storage eventstore.Storage,
	writer eventstore.Writer,
	serializer eventstore.Serializer,
	options ...Option,
) (*Controller, error) {

	c, err := buildController(streamName, storage, writer, serializer, options...)
	if err != nil {
		return nil, err
	}

	go c.run()

	return c, nil
}

func buildController(
	streamName string,
	storage eventstore.Storage,
	writer eventstore.Writer,
	serializer eventstore.Serializer,
	options ...Option,
) (*Controller, error) {

	switch {
	case streamName == "":
		return nil, eventstore.ErrEmptyStreamName
	case storage == nil:
		return nil, ErrNilStorage
	case writer == nil:
		return nil, ErrNilWriter
	case serializer == nil:
		return nil, ErrNilSerializer
	}

	c := &Controller{
		streamName:  streamName,
		storage:     storage,
		writer:      writer,
		serializer:  serializer,
		clock:       time.Now,
		mailboxSize: defaultMailboxSize,
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	c.mailbox = make(chan request, c.mailboxSize)

	return c, nil
}

// StreamName returns the name of the stream this controller owns.
func (c *Controller) StreamName() string {
	return c.streamName
}

// Version returns the current version of the stream, 0 if nothing was appended yet.
func (c *Controller) Version(ctx context.Context) (eventstore.StreamVersion, error) {
	var version eventstore.StreamVersion
	var err error

	submitErr := c.submit(ctx, func(ctx context.Context) {
		if err = c.ensureLoaded(ctx); err != nil {
			return
		}

		version = c.version
	})
	if submitErr != nil {
		return 0, submitErr
	}

	return version, err
}

// Shutdown stops the controller goroutine and waits until it has exited.
// A request that is being served completes first. Requests still waiting in the mailbox,
// and all later calls, fail with eventstore.ErrControllerShutDown.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.quit)
	})

	<-c.stopped
}

func (c *Controller) run() {
	defer close(c.stopped)

	ctx := context.Background()
	_ = c.ensureLoaded(ctx)

	for {
		select {
		case <-c.quit:
			c.logDebug(ctx, logMsgControllerStopped, logAttrStreamVersion, c.version)
			return
		default:
		}

		select {
		case <-c.quit:
			c.logDebug(ctx, logMsgControllerStopped, logAttrStreamVersion, c.version)
			return

		case req := <-c.mailbox:
			req.serve(req.ctx)
			close(req.done)
		}
	}
}

// submit hands serve to the controller goroutine and waits until it was served.
// The request runs detached from the caller's cancellation: once dequeued it completes
// even if the caller has given up waiting.
func (c *Controller) submit(ctx context.Context, serve func(ctx context.Context)) error {
	select {
	case <-c.quit:
		return eventstore.ErrControllerShutDown
	default:
	}

	req := request{
		ctx:   context.WithoutCancel(ctx),
		serve: serve,
		done:  make(chan struct{}),
	}

	select {
	case c.mailbox <- req:
	case <-c.quit:
		return eventstore.ErrControllerShutDown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		select {
		case <-req.done:
			return nil
		default:
			return eventstore.ErrControllerShutDown
		}
	}
}

// ensureLoaded fetches the stream's identifier and version from storage unless that already succeeded.
// Must only be called from the run goroutine.
func (c *Controller) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	info, err := c.storage.StreamInfo(ctx, c.streamName)
	if err != nil {
		c.logError(ctx, logMsgLoadStreamFailed, err)

		return errors.Join(eventstore.ErrLoadingStreamFailed, err)
	}

	c.loaded = true
	c.hasID = info.Exists
	c.streamID = info.StreamID
	c.version = info.Version

	c.logDebug(ctx, logMsgStreamLoaded, logAttrStreamID, c.streamID, logAttrStreamVersion, c.version)

	return nil
}
