package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_GetConsistencyLevel_Defaults_To_Strong(t *testing.T) {
	assert.Equal(t, StrongConsistency, GetConsistencyLevel(context.Background()))
}

func Test_GetConsistencyLevel_Survives_WithoutCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(WithEventualConsistency(context.Background()))
	cancel()

	detached := context.WithoutCancel(ctx)

	assert.Equal(t, EventualConsistency, GetConsistencyLevel(detached))
	assert.NoError(t, detached.Err())
}

func Test_ConsistencyLevel_String(t *testing.T) {
	assert.Equal(t, "strong", GetConsistencyLevel(WithStrongConsistency(context.Background())).String())
	assert.Equal(t, "eventual", EventualConsistency.String())
	assert.Equal(t, "unknown", ConsistencyLevel(99).String())
}
