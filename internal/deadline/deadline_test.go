package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecondsRemaining(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(3600), SecondsRemaining(start, 2*time.Hour, start.Add(time.Hour)))
	assert.Equal(t, int64(0), SecondsRemaining(start, time.Hour, start.Add(time.Hour)))
	assert.Equal(t, int64(-1800), SecondsRemaining(start, time.Hour, start.Add(90*time.Minute)))
}

func TestIsLate(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsLate(start, time.Hour, start.Add(59*time.Minute)))
	assert.True(t, IsLate(start, time.Hour, start.Add(61*time.Minute)))
}

func TestRemainingUntil(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(600), RemainingUntil(now.Add(10*time.Minute), now))
	assert.Equal(t, int64(-600), RemainingUntil(now.Add(-10*time.Minute), now))
}
