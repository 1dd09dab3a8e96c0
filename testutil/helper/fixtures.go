package helper

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	AmountDepositedEventType = "AmountDeposited"
	AmountWithdrawnEventType = "AmountWithdrawn"
)

// AmountDeposited is the payload of the fixture events.
type AmountDeposited struct {
	AccountID string `json:"accountId"`
	Amount    int    `json:"amount"`
}

// EventMetadata is the metadata of the fixture events.
type EventMetadata struct {
	RequestID string `json:"requestId"`
}

func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id
}

// GivenUniqueStreamName returns a stream name no other test uses, so tests can share a database.
func GivenUniqueStreamName(t testing.TB) string {
	return "account-" + GivenUniqueID(t).String()
}

// NewFixtureSerializer returns a JSON serializer that knows the fixture event types.
func NewFixtureSerializer(t testing.TB) *eventstore.JSONSerializer {
	serializer := eventstore.NewJSONSerializer()
	require.NoError(t, serializer.RegisterType(AmountDepositedEventType, AmountDeposited{}))
	require.NoError(t, serializer.RegisterType(AmountWithdrawnEventType, AmountDeposited{}))

	return serializer
}

// FixtureInputEvents builds n deposit events whose amounts are 1…n.
func FixtureInputEvents(n int) []eventstore.InputEvent {
	events := make([]eventstore.InputEvent, 0, n)

	for i := 1; i <= n; i++ {
		events = append(events, FixtureInputEvent(i))
	}

	return events
}

// FixtureInputEvent builds one deposit event with the given amount.
func FixtureInputEvent(amount int) eventstore.InputEvent {
	return eventstore.BuildInputEvent(
		AmountDepositedEventType,
		AmountDeposited{AccountID: "4711", Amount: amount},
		EventMetadata{RequestID: fmt.Sprintf("request-%d", amount)},
	)
}

// FixtureStorableEvents builds n already encoded events with versions from+0 … from+n-1.
func FixtureStorableEvents(t testing.TB, streamID eventstore.StreamID, from eventstore.StreamVersion, n int) eventstore.StorableEvents {
	events := make(eventstore.StorableEvents, 0, n)

	for i := 0; i < n; i++ {
		events = append(events, eventstore.StorableEvent{
			EventID:       GivenUniqueID(t),
			StreamID:      streamID,
			StreamVersion: from + uint64(i),
			EventType:     AmountDepositedEventType,
			Data:          []byte(fmt.Sprintf(`{"accountId":"4711","amount":%d}`, i+1)),
			Metadata:      []byte(`{"requestId":"fixture"}`),
		})
	}

	return events
}

// Versions extracts the stream versions of recorded events.
func Versions(events eventstore.RecordedEvents) []eventstore.StreamVersion {
	versions := make([]eventstore.StreamVersion, 0, len(events))
	for _, event := range events {
		versions = append(versions, event.StreamVersion)
	}

	return versions
}
