package helper

import (
	"sync"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

// SerializerStub delegates to a real serializer unless a failure was queued.
type SerializerStub struct {
	eventstore.Serializer

	mu               sync.Mutex
	serializeFails   []error
	deserializeFails []error
}

func NewSerializerStub(delegate eventstore.Serializer) *SerializerStub {
	return &SerializerStub{Serializer: delegate}
}

// FailNextSerialize makes the next Serialize call return err.
func (s *SerializerStub) FailNextSerialize(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.serializeFails = append(s.serializeFails, err)
}

// FailNextDeserialize makes the next Deserialize call return err.
func (s *SerializerStub) FailNextDeserialize(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deserializeFails = append(s.deserializeFails, err)
}

// Serialize implements eventstore.Serializer.
func (s *SerializerStub) Serialize(value any) ([]byte, error) {
	s.mu.Lock()
	if len(s.serializeFails) > 0 {
		err := s.serializeFails[0]
		s.serializeFails = s.serializeFails[1:]
		s.mu.Unlock()

		return nil, err
	}
	s.mu.Unlock()

	return s.Serializer.Serialize(value)
}

// Deserialize implements eventstore.Serializer.
func (s *SerializerStub) Deserialize(data []byte, typeHint string) (any, error) {
	s.mu.Lock()
	if len(s.deserializeFails) > 0 {
		err := s.deserializeFails[0]
		s.deserializeFails = s.deserializeFails[1:]
		s.mu.Unlock()

		return nil, err
	}
	s.mu.Unlock()

	return s.Serializer.Deserialize(data, typeHint)
}
