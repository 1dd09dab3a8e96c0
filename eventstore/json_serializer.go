package eventstore

import (
	"errors"
	"reflect"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var ErrEmptyEventType = errors.New("event type must not be empty")
var ErrNilPrototype = errors.New("prototype must not be nil")

// JSONSerializer implements Serializer with jsoniter.
//
// Payloads are decoded into the Go type registered for their event type (see RegisterType).
// Without a registered type, or without a type hint, JSON is decoded into generic values
// (map[string]any, []any, float64, string, bool, nil).
type JSONSerializer struct {
	api   jsoniter.API
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewJSONSerializer creates a JSONSerializer with no registered types.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{
		api:   jsoniter.ConfigCompatibleWithStandardLibrary,
		types: make(map[string]reflect.Type),
	}
}

// RegisterType binds an event type to the Go type of prototype.
// Deserialize returns values of that type (not pointers) for the event type.
func (s *JSONSerializer) RegisterType(eventType string, prototype any) error {
	if eventType == "" {
		return ErrEmptyEventType
	}

	if prototype == nil {
		return ErrNilPrototype
	}

	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[eventType] = t

	return nil
}

// Serialize implements Serializer.
func (s *JSONSerializer) Serialize(value any) ([]byte, error) {
	return s.api.Marshal(value)
}

// Deserialize implements Serializer.
func (s *JSONSerializer) Deserialize(data []byte, typeHint string) (any, error) {
	if t, ok := s.registeredType(typeHint); ok {
		target := reflect.New(t)
		if err := s.api.Unmarshal(data, target.Interface()); err != nil {
			return nil, err
		}

		return target.Elem().Interface(), nil
	}

	var value any
	if err := s.api.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	return value, nil
}

func (s *JSONSerializer) registeredType(typeHint string) (reflect.Type, bool) {
	if typeHint == NoTypeHint {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeHint]

	return t, ok
}

// Ensure JSONSerializer implements Serializer.
var _ Serializer = (*JSONSerializer)(nil)
