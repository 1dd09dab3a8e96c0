package eventstore

import "context"

// ConsistencyLevel defines which database node a storage engine may read from.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary node. It is the default, because a stream
	// controller compares expected versions against state it has just written.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica. Only use it for scans that can tolerate a
	// lagging tail, e.g. rebuilding a read model with StreamForward.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "eventstore.consistency_level"

// WithStrongConsistency returns a context that pins storage reads to the primary node.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows storage reads from a replica.
//
// The context travels through the stream controller unchanged, so it applies to
// ReadForward and to every pull of a ForwardStream:
//
//	ctx = eventstore.WithEventualConsistency(ctx)
//	events, err := stream.ReadForward(ctx, 1, 500)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// Without an explicit level it returns StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
