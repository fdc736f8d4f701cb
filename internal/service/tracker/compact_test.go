package tracker

import (
	"testing"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactMergesWithinGap(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 0, End: 1000, Domain: "claude.ai"},
		{Start: 1050, End: 2000, Domain: "claude.ai"},
	}
	out := Compact(logs)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(2000), out[0].End)
}

func TestCompactKeepsEntriesBeyondGap(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 0, End: 1000, Domain: "claude.ai"},
		{Start: 1000 + MergeGapMS + 10_000, End: 1000 + MergeGapMS + 20_000, Domain: "claude.ai"},
	}
	out := Compact(logs)
	assert.Len(t, out, 2)
}

func TestCompactDoesNotMergeAcrossDomains(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 0, End: 1000, Domain: "claude.ai"},
		{Start: 1100, End: 2000, Domain: "chatgpt.com"},
	}
	out := Compact(logs)
	assert.Len(t, out, 2)
}

func TestCompactKeepsMaxEnd(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 0, End: 5000, Domain: "claude.ai"},
		{Start: 5500, End: 5600, Domain: "claude.ai"},
	}
	out := Compact(logs)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(5600), out[0].End)
}

func TestCompactLeavesOverlapsAlone(t *testing.T) {
	// A negative gap never merges; overlapping entries pass through.
	logs := []entity.LogEntry{
		{Start: 0, End: 5000, Domain: "claude.ai"},
		{Start: 1000, End: 2000, Domain: "claude.ai"},
	}
	out := Compact(logs)
	assert.Len(t, out, 2)
}

func TestCompactDropsInvertedEntries(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 2000, End: 1000, Domain: "claude.ai"},
		{Start: 3000, End: 4000, Domain: "claude.ai"},
	}
	out := Compact(logs)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3000), out[0].Start)
}

func TestCompactSortsBeforeMerging(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 5000, End: 6000, Domain: "claude.ai"},
		{Start: 0, End: 4900, Domain: "claude.ai"},
	}
	out := Compact(logs)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(6000), out[0].End)
}

func TestCompactIdempotent(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 0, End: 1000, Domain: "claude.ai"},
		{Start: 1050, End: 2000, Domain: "claude.ai"},
		{Start: 500_000, End: 600_000, Domain: "chatgpt.com"},
	}
	once := Compact(logs)
	twice := Compact(once)
	assert.Equal(t, once, twice)
}

func TestCompactEmpty(t *testing.T) {
	assert.Empty(t, Compact(nil))
	assert.Empty(t, Compact([]entity.LogEntry{}))
}
