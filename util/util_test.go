package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTwoDecimals(t *testing.T) {
	assert.Equal(t, 2.67, RoundTwoDecimals(2.667))
	assert.Equal(t, 66.67, RoundTwoDecimals(200.0/3.0))
	assert.Equal(t, 33.33, RoundTwoDecimals(100.0/3.0))
	assert.Equal(t, 0.0, RoundTwoDecimals(0))
	assert.Equal(t, 100.0, RoundTwoDecimals(100))
	assert.Equal(t, 2.5, RoundTwoDecimals(2.5))
}

func TestGetUUID(t *testing.T) {
	id := GetUUID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, GetUUID())
}

func TestSecondsToShortDurationString(t *testing.T) {
	assert.Equal(t, "0s", SecondsToShortDurationString(0))
	assert.Equal(t, "0s", SecondsToShortDurationString(-5))
	assert.Equal(t, "45s", SecondsToShortDurationString(45))
	assert.Equal(t, "2m 5s", SecondsToShortDurationString(125))
	assert.Equal(t, "1h 2m 5s", SecondsToShortDurationString(3725))
	assert.Equal(t, "1h", SecondsToShortDurationString(3600))
	assert.Equal(t, "1m", SecondsToShortDurationString(60))
}

func TestContainsStringInArray(t *testing.T) {
	assert.True(t, ContainsStringInArray([]string{"a", "b"}, "b"))
	assert.False(t, ContainsStringInArray([]string{"a", "b"}, "c"))
	assert.False(t, ContainsStringInArray(nil, "a"))
}
