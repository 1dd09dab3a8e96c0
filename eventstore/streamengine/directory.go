package streamengine

import (
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// Directory maps stream names to their controllers and creates controllers on first use.
// There is at most one live Controller per stream name per Directory.
type Directory struct {
	storage    eventstore.Storage
	writer     eventstore.Writer
	serializer eventstore.Serializer
	options    []Option

	mu          sync.Mutex
	controllers map[string]*Controller
	shutDown    bool
}

// NewDirectory creates a Directory whose controllers share storage, writer, serializer and options.
// Options are validated right away, so a Directory never fails later because of them.
func NewDirectory(
	storage eventstore.Storage,
	writer eventstore.Writer,
	serializer eventstore.Serializer,
	options ...Option,
) (*Directory, error) {

	if _, err := buildController("probe", storage, writer, serializer, options...); err != nil {
		return nil, err
	}

	return &Directory{
		storage:     storage,
		writer:      writer,
		serializer:  serializer,
		options:     options,
		controllers: make(map[string]*Controller),
	}, nil
}

// Stream returns the controller for streamName, creating and starting it if it doesn't exist yet.
//
// Returns eventstore.ErrEmptyStreamName for an empty name and eventstore.ErrControllerShutDown
// after Shutdown.
func (d *Directory) Stream(streamName string) (*Controller, error) {
	if streamName == "" {
		return nil, eventstore.ErrEmptyStreamName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shutDown {
		return nil, eventstore.ErrControllerShutDown
	}

	if controller, ok := d.controllers[streamName]; ok {
		return controller, nil
	}

	controller, err := NewController(streamName, d.storage, d.writer, d.serializer, d.options...)
	if err != nil {
		return nil, err
	}

	d.controllers[streamName] = controller

	return controller, nil
}

// Len returns the number of controllers created so far.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.controllers)
}

// Shutdown stops all controllers and waits for them. Later calls to Stream fail.
func (d *Directory) Shutdown() {
	d.mu.Lock()
	d.shutDown = true
	controllers := make([]*Controller, 0, len(d.controllers))
	for _, controller := range d.controllers {
		controllers = append(controllers, controller)
	}
	d.mu.Unlock()

	for _, controller := range controllers {
		controller.Shutdown()
	}
}
