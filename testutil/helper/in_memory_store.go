package helper

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

var ErrInjected = errors.New("injected failure")

// CallCounts reports how often each InMemoryStore method was invoked.
type CallCounts struct {
	StreamInfo   int
	CreateStream int
	ReadForward  int
	Append       int
}

// InMemoryStore implements eventstore.Storage and eventstore.Writer on maps.
// Each method can be made to fail for its next calls, and appends can be held at a gate
// to observe what happens while a request is in flight.
type InMemoryStore struct {
	mu       sync.Mutex
	nextID   eventstore.StreamID
	ids      map[string]eventstore.StreamID
	events   map[eventstore.StreamID]eventstore.StorableEvents
	counts   CallCounts
	failures map[string][]error

	appendGate    chan struct{}
	appendEntered chan struct{}
}

const (
	methodStreamInfo   = "StreamInfo"
	methodCreateStream = "CreateStream"
	methodReadForward  = "ReadForward"
	methodAppend       = "AppendToStream"
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:   1,
		ids:      make(map[string]eventstore.StreamID),
		events:   make(map[eventstore.StreamID]eventstore.StorableEvents),
		failures: make(map[string][]error),
	}
}

// FailNextStreamInfo makes the next len(errs) StreamInfo calls return errs in order.
func (s *InMemoryStore) FailNextStreamInfo(errs ...error) {
	s.queueFailures(methodStreamInfo, errs)
}

// FailNextCreateStream makes the next len(errs) CreateStream calls return errs in order.
func (s *InMemoryStore) FailNextCreateStream(errs ...error) {
	s.queueFailures(methodCreateStream, errs)
}

// FailNextReadForward makes the next len(errs) ReadForward calls return errs in order.
func (s *InMemoryStore) FailNextReadForward(errs ...error) {
	s.queueFailures(methodReadForward, errs)
}

// FailNextAppend makes the next len(errs) AppendToStream calls return errs in order.
func (s *InMemoryStore) FailNextAppend(errs ...error) {
	s.queueFailures(methodAppend, errs)
}

// BlockAppends holds every following AppendToStream call until release is called.
// entered receives one value per append that reached the gate.
func (s *InMemoryStore) BlockAppends() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gate := make(chan struct{})
	s.appendGate = gate
	s.appendEntered = make(chan struct{}, 64)

	var once sync.Once

	return s.appendEntered, func() {
		once.Do(func() {
			s.mu.Lock()
			s.appendGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Counts returns a snapshot of the call counters.
func (s *InMemoryStore) Counts() CallCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts
}

// StoredEvents returns a copy of everything persisted for streamName.
func (s *InMemoryStore) StoredEvents(streamName string) eventstore.StorableEvents {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids[streamName]
	if !ok {
		return nil
	}

	return append(eventstore.StorableEvents(nil), s.events[id]...)
}

// GivenStream creates streamName holding events, bypassing any controller.
func (s *InMemoryStore) GivenStream(streamName string, events eventstore.StorableEvents) eventstore.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.ids[streamName] = id

	for i := range events {
		events[i].StreamID = id
	}
	s.events[id] = append(eventstore.StorableEvents(nil), events...)

	return id
}

// CreateStream implements eventstore.Storage.
func (s *InMemoryStore) CreateStream(_ context.Context, streamName string) (eventstore.StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts.CreateStream++

	if err := s.popFailure(methodCreateStream); err != nil {
		return 0, err
	}

	if _, exists := s.ids[streamName]; exists {
		return 0, eventstore.ErrStreamAlreadyExists
	}

	id := s.nextID
	s.nextID++
	s.ids[streamName] = id
	s.events[id] = nil

	return id, nil
}

// StreamInfo implements eventstore.Storage.
func (s *InMemoryStore) StreamInfo(_ context.Context, streamName string) (eventstore.StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts.StreamInfo++

	if err := s.popFailure(methodStreamInfo); err != nil {
		return eventstore.StreamInfo{}, err
	}

	info := eventstore.StreamInfo{StreamName: streamName}

	id, exists := s.ids[streamName]
	if !exists {
		return info, nil
	}

	info.StreamID = id
	info.Exists = true
	info.Version = uint64(len(s.events[id]))

	return info, nil
}

// ReadForward implements eventstore.Storage.
func (s *InMemoryStore) ReadForward(
	_ context.Context,
	streamID eventstore.StreamID,
	startVersion eventstore.StreamVersion,
	count uint64,
) (eventstore.StorableEvents, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts.ReadForward++

	if err := s.popFailure(methodReadForward); err != nil {
		return nil, err
	}

	stored, exists := s.events[streamID]
	if !exists {
		return nil, eventstore.ErrStreamNotFound
	}

	result := eventstore.StorableEvents{}
	for _, event := range stored {
		if uint64(len(result)) == count {
			break
		}

		if event.StreamVersion >= startVersion {
			result = append(result, event)
		}
	}

	return result, nil
}

// AppendToStream implements eventstore.Writer. The batch must continue the stored versions
// without a gap, otherwise eventstore.ErrConcurrencyConflict is returned.
func (s *InMemoryStore) AppendToStream(
	_ context.Context,
	streamID eventstore.StreamID,
	_ string,
	events eventstore.StorableEvents,
) error {

	s.mu.Lock()
	s.counts.Append++
	gate, entered := s.appendGate, s.appendEntered
	s.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFailure(methodAppend); err != nil {
		return err
	}

	stored, exists := s.events[streamID]
	if !exists {
		return eventstore.ErrStreamNotFound
	}

	for i, event := range events {
		if event.StreamVersion != uint64(len(stored)+i+1) || event.StreamID != streamID {
			return eventstore.ErrConcurrencyConflict
		}
	}

	s.events[streamID] = append(stored, events...)

	return nil
}

func (s *InMemoryStore) queueFailures(method string, errs []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[method] = append(s.failures[method], errs...)
}

// popFailure must be called with s.mu held.
func (s *InMemoryStore) popFailure(method string) error {
	queued := s.failures[method]
	if len(queued) == 0 {
		return nil
	}

	s.failures[method] = queued[1:]

	return queued[0]
}
