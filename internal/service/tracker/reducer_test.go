package tracker

import (
	"testing"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/service/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 = int64(1_700_000_000_000)

func testState() *State {
	s := NewState()
	s.Rules = append([]string{}, rules.DefaultRules...)
	return s
}

func activated(tabID int, url string) entity.TrackerEvent {
	return entity.TrackerEvent{Type: entity.EventTabActivated, TabID: tabID, URL: url, Active: true}
}

func TestTabActivatedOpensSession(t *testing.T) {
	s := testState()
	res := s.Apply(activated(1, "https://chat.openai.com/c/abc"), t0)

	require.NotNil(t, s.Active)
	assert.Equal(t, 1, s.Active.TabID)
	assert.Equal(t, "chat.openai.com", s.Active.Domain)
	assert.Equal(t, t0, s.Active.Start)
	assert.True(t, res.ActiveDirty)
	assert.NotNil(t, res.Started)
}

func TestNonMatchingURLDoesNotOpen(t *testing.T) {
	s := testState()
	res := s.Apply(activated(1, "https://example.com/"), t0)

	assert.Nil(t, s.Active)
	assert.False(t, res.ActiveDirty)
}

func TestSwitchClosesBeforeOpening(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/chat"), t0)
	res := s.Apply(activated(2, "https://chatgpt.com/"), t0+30_000)

	require.NotNil(t, s.Active)
	assert.Equal(t, 2, s.Active.TabID)
	require.Len(t, s.Logs, 1)
	assert.Equal(t, "claude.ai", s.Logs[0].Domain)
	assert.Equal(t, t0, s.Logs[0].Start)
	assert.Equal(t, t0+30_000, s.Logs[0].End)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonTabSwitch, res.Closed[0].Reason)
	assert.True(t, res.Closed[0].Recorded)
}

func TestNeverMoreThanOneActive(t *testing.T) {
	s := testState()
	events := []entity.TrackerEvent{
		activated(1, "https://claude.ai/"),
		{Type: entity.EventHeartbeat, TabID: 1, URL: "https://claude.ai/", TS: t0 + 5_000},
		activated(2, "https://chatgpt.com/"),
		{Type: entity.EventWindowFocusChanged, TabID: 3, WindowID: 2, URL: "https://gemini.google.com/app", Active: true},
		{Type: entity.EventTabRemoved, TabID: 3},
	}
	now := t0
	for _, ev := range events {
		now += 10_000
		s.Apply(ev, now)
		if s.Active != nil {
			// exactly one slot, ever
			assert.NotEmpty(t, s.Active.Domain)
		}
	}
	assert.Nil(t, s.Active)
}

func TestReentrantOpenIsNoOp(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(activated(1, "https://claude.ai/other"), t0+10_000)

	assert.Equal(t, t0, s.Active.Start)
	assert.Empty(t, res.Closed)
	assert.Empty(t, s.Logs)
}

func TestShortSessionDropped(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{Type: entity.EventTabRemoved, TabID: 1}, t0+800)

	assert.Nil(t, s.Active)
	assert.Empty(t, s.Logs)
	require.Len(t, res.Closed, 1)
	assert.False(t, res.Closed[0].Recorded)
}

func TestTabUpdatedLeavingRulesCloses(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventTabUpdated, TabID: 1, URL: "https://news.example.com/", Active: true, Status: "complete",
	}, t0+45_000)

	assert.Nil(t, s.Active)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonLeftRules, res.Closed[0].Reason)
}

func TestTabUpdatedLoadingIgnored(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventTabUpdated, TabID: 1, URL: "https://news.example.com/", Active: true, Status: "loading",
	}, t0+45_000)

	assert.NotNil(t, s.Active)
	assert.Empty(t, res.Closed)
}

func TestWindowFocusNoneIgnored(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{Type: entity.EventWindowFocusChanged, WindowID: -1}, t0+10_000)

	assert.NotNil(t, s.Active)
	assert.Empty(t, res.Closed)
}

func TestWindowFocusToNonMatchingCloses(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventWindowFocusChanged, TabID: 9, WindowID: 2, URL: "https://example.com/", Active: true,
	}, t0+20_000)

	assert.Nil(t, s.Active)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonWindowBlur, res.Closed[0].Reason)
}

func TestIdleTimeoutCloses(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)

	res := s.Apply(entity.TrackerEvent{Type: entity.EventHeartbeat, TabID: 1, URL: "https://claude.ai/", TS: t0 + 5_000}, t0+5_000)
	assert.Empty(t, res.Closed)

	// Still inside the idle window.
	res = s.EnforceIdle(t0 + 5_000 + 59_000)
	assert.NotNil(t, s.Active)
	assert.Empty(t, res.Closed)

	res = s.EnforceIdle(t0 + 5_000 + 61_000)
	assert.Nil(t, s.Active)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonIdleTimeout, res.Closed[0].Reason)
	require.Len(t, s.Logs, 1)
	assert.Equal(t, t0+5_000+61_000, s.Logs[0].End)
}

func TestHeartbeatOpensMatchingPage(t *testing.T) {
	s := testState()
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventHeartbeat, TabID: 4, URL: "https://perplexity.ai/search", TS: t0,
	}, t0)

	require.NotNil(t, s.Active)
	assert.Equal(t, 4, s.Active.TabID)
	assert.NotNil(t, res.Started)
}

func TestHeartbeatFromOtherTabOnlyRefreshesActivity(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)

	// A second visible matching tab heartbeats while tab 1 holds the
	// session. The session must stay with tab 1.
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventHeartbeat, TabID: 2, URL: "https://chatgpt.com/", TS: t0 + 20_000,
	}, t0+20_000)

	require.NotNil(t, s.Active)
	assert.Equal(t, 1, s.Active.TabID)
	assert.Equal(t, "claude.ai", s.Active.Domain)
	assert.Empty(t, res.Closed)
	assert.Nil(t, res.Started)
	assert.Equal(t, t0+20_000, s.LastActivity[2])
}

func TestPauseForceEndsAndBlocksStarts(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)

	res := s.PauseFor(15, t0+60_000)
	assert.Nil(t, s.Active)
	assert.True(t, res.PauseDirty)
	assert.Equal(t, t0+60_000+15*60_000, s.PausedUntil)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonPaused, res.Closed[0].Reason)

	res = s.Apply(activated(2, "https://chatgpt.com/"), t0+120_000)
	assert.Nil(t, s.Active)
	assert.Nil(t, res.Started)

	s.Resume()
	s.Apply(activated(2, "https://chatgpt.com/"), t0+180_000)
	assert.NotNil(t, s.Active)
}

func TestPauseExpiryAllowsStarts(t *testing.T) {
	s := testState()
	s.PauseFor(1, t0)
	s.Apply(activated(1, "https://claude.ai/"), t0+61_000)
	assert.NotNil(t, s.Active)
}

func TestTrackingDisabledBlocksStarts(t *testing.T) {
	s := testState()
	s.TrackingEnabled = false
	s.Apply(activated(1, "https://claude.ai/"), t0)
	assert.Nil(t, s.Active)
}

func TestRecheckClosesWhenTabLeftRules(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	res := s.Apply(entity.TrackerEvent{
		Type: entity.EventRecheck, TabID: 1, URL: "https://example.com/", Active: true,
	}, t0+30_000)

	assert.Nil(t, s.Active)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ReasonLeftRules, res.Closed[0].Reason)
}

func TestResetTodayKeepsOlderEntries(t *testing.T) {
	s := testState()
	sod := t0 // treat t0 as local midnight
	s.Logs = []entity.LogEntry{
		{Start: t0 - 3_600_000, End: t0 - 3_000_000, Domain: "claude.ai"},
		{Start: t0 + 1_000_000, End: t0 + 2_000_000, Domain: "chatgpt.com"},
	}
	s.Apply(activated(1, "https://claude.ai/"), t0+3_000_000)

	res := s.ResetToday(t0+3_600_000, sod)
	assert.Nil(t, s.Active)
	require.Len(t, s.Logs, 1)
	assert.Equal(t, "claude.ai", s.Logs[0].Domain)
	assert.True(t, res.LogsDirty)
}

func TestClearDataWipesEverything(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	s.Logs = append(s.Logs, entity.LogEntry{Start: 1, End: 5_000, Domain: "poe.com"})

	res := s.ClearData()
	assert.Nil(t, s.Active)
	assert.Empty(t, s.Logs)
	assert.True(t, res.ActiveDirty)
	assert.True(t, res.LogsDirty)
}

func TestAdjacentSessionsMergeInLog(t *testing.T) {
	s := testState()
	s.Apply(activated(1, "https://claude.ai/"), t0)
	s.Apply(entity.TrackerEvent{Type: entity.EventTabRemoved, TabID: 1}, t0+60_000)
	// Reopened within the merge gap.
	s.Apply(activated(2, "https://claude.ai/new"), t0+90_000)
	s.Apply(entity.TrackerEvent{Type: entity.EventTabRemoved, TabID: 2}, t0+150_000)

	require.Len(t, s.Logs, 1)
	assert.Equal(t, t0, s.Logs[0].Start)
	assert.Equal(t, t0+150_000, s.Logs[0].End)
}
