package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weekMS = 7 * 24 * 3600 * 1000

// fixedNow is a Tuesday afternoon, so the surrounding week boundaries
// are stable regardless of the host clock.
var fixedNow = time.Date(2026, time.August, 25, 15, 0, 0, 0, time.UTC).UnixMilli()

func entry(weekStart int64, day int, startMin, durMin int, domain string) entity.LogEntry {
	start := weekStart + int64(day)*24*3600*1000 + int64(startMin)*60_000
	return entity.LogEntry{Start: start, End: start + int64(durMin)*60_000, Domain: domain}
}

func weekFixture() (int64, []entity.LogEntry) {
	ws := utils.StartOfWeek(fixedNow, time.UTC)
	logs := []entity.LogEntry{
		entry(ws, 0, 10*60, 120, "chatgpt.com"),
		entry(ws, 2, 9*60, 80, "claude.ai"),
		entry(ws, 2, 20*60, 45, "perplexity.ai"),
		// previous week, 200 minutes
		entry(ws-weekMS, 1, 12*60, 200, "chatgpt.com"),
	}
	return ws, logs
}

func TestComputeWeekTotals(t *testing.T) {
	ws, logs := weekFixture()
	stats := ComputeWeek(logs, fixedNow, time.UTC)

	assert.Equal(t, ws, stats.WeekStart)
	assert.Equal(t, 245, stats.TotalMinutes)
	assert.Equal(t, [7]int{120, 0, 125, 0, 0, 0, 0}, stats.PerDayMinutes)
	assert.Equal(t, "chatgpt.com", stats.TopDomain)

	require.Len(t, stats.ByDomain, 3)
	assert.Equal(t, entity.DomainMinute{Domain: "chatgpt.com", Minutes: 120}, stats.ByDomain[0])
	assert.Equal(t, entity.DomainMinute{Domain: "claude.ai", Minutes: 80}, stats.ByDomain[1])

	assert.Equal(t, utils.ISODate(ws+2*24*3600*1000, time.UTC), stats.MostActiveDay.ISO)
	assert.Equal(t, 125, stats.MostActiveDay.Minutes)

	assert.Equal(t, CalcScore(245), stats.Score)
	assert.Equal(t, "Healthy", stats.Badge)
}

func TestComputeWeekExcludesOtherWeeks(t *testing.T) {
	_, logs := weekFixture()
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	// The previous week's 200 minutes stay out of this week's totals.
	assert.Equal(t, 245, stats.TotalMinutes)
}

func TestComputeWeekSplitsMidnightSessions(t *testing.T) {
	ws := utils.StartOfWeek(fixedNow, time.UTC)
	// 23:30 Tuesday to 00:30 Wednesday.
	logs := []entity.LogEntry{entry(ws, 1, 23*60+30, 60, "claude.ai")}
	stats := ComputeWeek(logs, fixedNow, time.UTC)

	assert.Equal(t, 30, stats.PerDayMinutes[1])
	assert.Equal(t, 30, stats.PerDayMinutes[2])
	assert.Equal(t, 60, stats.TotalMinutes)
}

func TestComputeWeekDomainTieBreak(t *testing.T) {
	ws := utils.StartOfWeek(fixedNow, time.UTC)
	logs := []entity.LogEntry{
		entry(ws, 0, 600, 30, "claude.ai"),
		entry(ws, 1, 600, 30, "chatgpt.com"),
	}
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	assert.Equal(t, "chatgpt.com", stats.TopDomain)
}

func TestComputeWeekEmpty(t *testing.T) {
	stats := ComputeWeek(nil, fixedNow, time.UTC)
	ws := utils.StartOfWeek(fixedNow, time.UTC)

	assert.Equal(t, 0, stats.TotalMinutes)
	assert.Empty(t, stats.ByDomain)
	assert.Equal(t, "", stats.TopDomain)
	assert.Equal(t, utils.ISODate(ws, time.UTC), stats.MostActiveDay.ISO)
	assert.Equal(t, 100, stats.Score)
}

func TestFillTrendsChangeAndStreak(t *testing.T) {
	_, logs := weekFixture()
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	FillTrends(&stats, logs, time.UTC)

	require.NotNil(t, stats.ChangeVsPrevWeekPct)
	assert.InDelta(t, 22.5, *stats.ChangeVsPrevWeekPct, 0.001)
	assert.Equal(t, 2, stats.StreakWeeks)
}

func TestFillTrendsNilChangeWhenPrevEmpty(t *testing.T) {
	ws := utils.StartOfWeek(fixedNow, time.UTC)
	logs := []entity.LogEntry{entry(ws, 0, 600, 60, "claude.ai")}
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	FillTrends(&stats, logs, time.UTC)

	assert.Nil(t, stats.ChangeVsPrevWeekPct)
	assert.Equal(t, 1, stats.StreakWeeks)
}

func TestFillTrendsStreakStopsAtGap(t *testing.T) {
	ws := utils.StartOfWeek(fixedNow, time.UTC)
	logs := []entity.LogEntry{
		entry(ws, 0, 600, 60, "claude.ai"),
		entry(ws-weekMS, 0, 600, 60, "claude.ai"),
		// gap two weeks back, then an older active week
		entry(ws-3*weekMS, 0, 600, 60, "claude.ai"),
	}
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	FillTrends(&stats, logs, time.UTC)

	assert.Equal(t, 2, stats.StreakWeeks)
}

func TestTrendsAndHistoryAcrossSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	at := func(m time.Month, d, h, durMin int) entity.LogEntry {
		start := time.Date(2026, m, d, h, 0, 0, 0, loc).UnixMilli()
		return entity.LogEntry{Start: start, End: start + int64(durMin)*60_000, Domain: "claude.ai"}
	}
	// The week of Mar 2 contains the spring-forward Sunday, so it is 167
	// hours long; the walk back from Mar 9 must still land on Mar 2.
	logs := []entity.LogEntry{
		at(time.March, 9, 10, 120),
		at(time.March, 3, 12, 60),
		at(time.February, 24, 12, 60),
	}
	ts := time.Date(2026, time.March, 11, 12, 0, 0, 0, loc).UnixMilli()

	stats := ComputeWeek(logs, ts, loc)
	require.Equal(t, 120, stats.TotalMinutes)
	FillTrends(&stats, logs, loc)

	require.NotNil(t, stats.ChangeVsPrevWeekPct)
	assert.InDelta(t, 100.0, *stats.ChangeVsPrevWeekPct, 0.001)
	assert.Equal(t, 3, stats.StreakWeeks)

	hist := History(logs, ts, 3, loc)
	require.Len(t, hist, 3)
	assert.Equal(t, "2026-02-23", hist[0].WeekStart)
	assert.Equal(t, 60, hist[0].Minutes)
	assert.Equal(t, "2026-03-02", hist[1].WeekStart)
	assert.Equal(t, 60, hist[1].Minutes)
	assert.Equal(t, "2026-03-09", hist[2].WeekStart)
	assert.Equal(t, 120, hist[2].Minutes)
}

func TestHistoryOldestFirst(t *testing.T) {
	ws, logs := weekFixture()
	hist := History(logs, fixedNow, 4, time.UTC)

	require.Len(t, hist, 4)
	assert.Equal(t, utils.ISODate(ws-3*weekMS, time.UTC), hist[0].WeekStart)
	assert.Equal(t, 0, hist[0].Minutes)
	assert.Equal(t, 200, hist[2].Minutes)
	assert.Equal(t, utils.ISODate(ws, time.UTC), hist[3].WeekStart)
	assert.Equal(t, 245, hist[3].Minutes)
}

func TestEffectiveLogsIncludesActive(t *testing.T) {
	ws, logs := weekFixture()
	active := &entity.ActiveSession{TabID: 1, Domain: "claude.ai", Start: fixedNow - 600_000}
	all := effectiveLogs(logs, active, fixedNow)

	require.Len(t, all, len(logs)+1)
	stats := ComputeWeek(all, fixedNow, time.UTC)
	assert.Equal(t, 255, stats.TotalMinutes)
	_ = ws
}

func TestDigest(t *testing.T) {
	_, logs := weekFixture()
	stats := ComputeWeek(logs, fixedNow, time.UTC)
	assert.Equal(t, "Total: 245 min • Top site: chatgpt.com", Digest(stats))

	empty := ComputeWeek(nil, fixedNow, time.UTC)
	assert.Equal(t, "Total: 0 min • Top site: —", Digest(empty))
}

func TestDomainMinutesJSONRoundTrip(t *testing.T) {
	_, logs := weekFixture()
	stats := ComputeWeek(logs, fixedNow, time.UTC)

	raw, err := json.Marshal(stats.ByDomain)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chatgpt.com":120,"claude.ai":80,"perplexity.ai":45}`, string(raw))
	// Highest-minutes domain serializes first.
	assert.True(t, string(raw)[1:14] == `"chatgpt.com"`)

	var back entity.DomainMinutes
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, stats.ByDomain, back)
}
