package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_StartFrom_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		startFrom      StartFrom
		currentVersion StreamVersion
		expected       StreamVersion
		expectedString string
	}{
		{name: "origin on empty stream", startFrom: Origin(), currentVersion: 0, expected: 0, expectedString: "Origin"},
		{name: "origin ignores current version", startFrom: Origin(), currentVersion: 7, expected: 0, expectedString: "Origin"},
		{name: "current resolves to current version", startFrom: Current(), currentVersion: 7, expected: 7, expectedString: "Current"},
		{name: "explicit version", startFrom: AtVersion(3), currentVersion: 7, expected: 3, expectedString: "AtVersion(3)"},
		{name: "explicit version beyond current", startFrom: AtVersion(12), currentVersion: 7, expected: 12, expectedString: "AtVersion(12)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.startFrom.Resolve(tt.currentVersion))
			assert.Equal(t, tt.expectedString, tt.startFrom.String())
		})
	}
}

func Test_StartFrom_ZeroValue_Is_Origin(t *testing.T) {
	var startFrom StartFrom

	assert.True(t, startFrom.IsOrigin())
	assert.False(t, startFrom.IsCurrent())
	assert.Equal(t, StreamVersion(0), startFrom.Resolve(42))
}
