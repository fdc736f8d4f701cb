package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextWeeklyDigestSameDayBeforeHour(t *testing.T) {
	// Restarting on Monday 07:30 must keep that Monday's 09:00 slot.
	now := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	next := NextWeeklyDigest(now, time.Monday, 9, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)
}

func TestNextWeeklyDigestSameDayAfterHour(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	next := NextWeeklyDigest(now, time.Monday, 9, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)
}

func TestNextWeeklyDigestOtherWeekday(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	next := NextWeeklyDigest(now, time.Monday, 9, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)
}

func TestStartOfWeekMonday(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Sunday evening belongs to the week that started the previous Monday.
	sun := time.Date(2026, 3, 8, 22, 0, 0, 0, loc)
	start := time.UnixMilli(StartOfWeek(sun.UnixMilli(), loc)).In(loc)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), start)
}
