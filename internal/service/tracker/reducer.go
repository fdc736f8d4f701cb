// internal/service/tracker/reducer.go
package tracker

import (
	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/service/rules"
)

// Apply runs one browser event through the state machine. now is epoch
// ms. The returned Result tells the engine what to persist; Apply itself
// has no side effects beyond the state value.
func (s *State) Apply(ev entity.TrackerEvent, now int64) Result {
	switch ev.Type {
	case entity.EventHeartbeat:
		return s.applyHeartbeat(ev, now)
	case entity.EventTabActivated:
		var res Result
		// Re-activating the tracked tab must not touch the session;
		// switching away closes it even when the new tab never opens one.
		if s.Active != nil && s.Active.TabID != ev.TabID {
			res.merge(s.closeActive(now, ReasonTabSwitch))
		}
		res.merge(s.tryOpen(ev, now))
		return res
	case entity.EventTabUpdated:
		return s.applyTabUpdated(ev, now)
	case entity.EventTabRemoved:
		var res Result
		if s.Active != nil && s.Active.TabID == ev.TabID {
			res.merge(s.closeActive(now, ReasonTabClosed))
		}
		delete(s.LastActivity, ev.TabID)
		return res
	case entity.EventWindowFocusChanged:
		return s.applyWindowFocus(ev, now)
	case entity.EventRecheck:
		return s.applyRecheck(ev, now)
	default:
		return Result{}
	}
}

func (s *State) applyHeartbeat(ev entity.TrackerEvent, now int64) Result {
	ts := ev.TS
	if ts == 0 {
		ts = now
	}
	s.LastActivity[ev.TabID] = ts

	// A heartbeat may open a session only when none is running; the
	// content script sends from any visible tab, so a heartbeat must
	// never displace the focused tab's session.
	if s.Active != nil {
		return Result{}
	}
	if !rules.Matches(ev.URL, s.Rules) {
		return Result{}
	}
	return s.tryOpen(ev, now)
}

func (s *State) applyTabUpdated(ev entity.TrackerEvent, now int64) Result {
	// Only completed navigations count.
	if ev.Status != "" && ev.Status != "complete" {
		return Result{}
	}
	if !ev.Active || ev.URL == "" {
		return Result{}
	}
	if !rules.Matches(ev.URL, s.Rules) {
		if s.Active != nil && s.Active.TabID == ev.TabID {
			return s.closeActive(now, ReasonLeftRules)
		}
		return Result{}
	}
	return s.tryOpen(ev, now)
}

func (s *State) applyWindowFocus(ev entity.TrackerEvent, now int64) Result {
	// WindowID < 0 is WINDOW_ID_NONE (focus left the browser); the idle
	// timeout covers that case.
	if ev.WindowID < 0 {
		return Result{}
	}
	if ev.URL != "" && rules.Matches(ev.URL, s.Rules) {
		return s.tryOpen(ev, now)
	}
	// Focus moved to a non-matching tab.
	return s.closeActive(now, ReasonWindowBlur)
}

// applyRecheck re-evaluates the currently focused tab. It covers state
// drift no tab event reported, e.g. rules edited under an open session.
func (s *State) applyRecheck(ev entity.TrackerEvent, now int64) Result {
	if ev.URL != "" && ev.Active && rules.Matches(ev.URL, s.Rules) {
		return s.tryOpen(ev, now)
	}
	if s.Active == nil {
		return Result{}
	}
	if s.Active.TabID == ev.TabID {
		return s.closeActive(now, ReasonLeftRules)
	}
	return s.closeActive(now, ReasonTabSwitch)
}

// tryOpen starts a session for the event's tab when every guard passes.
// Re-entrant: opening the already-tracked tab is a no-op. Opening while
// a different session is active closes that one first, so the single
// active slot never leaks a session.
func (s *State) tryOpen(ev entity.TrackerEvent, now int64) Result {
	if !s.TrackingEnabled || now < s.PausedUntil {
		return Result{}
	}
	if ev.Type != entity.EventHeartbeat && !ev.Active {
		return Result{}
	}
	if !rules.Matches(ev.URL, s.Rules) {
		return Result{}
	}
	if s.Active != nil && s.Active.TabID == ev.TabID {
		return Result{}
	}

	var res Result
	res.merge(s.closeActive(now, ReasonTabSwitch))

	sess := &entity.ActiveSession{
		TabID:  ev.TabID,
		Domain: rules.Host(ev.URL),
		Start:  now,
	}
	s.Active = sess
	s.LastActivity[ev.TabID] = now
	res.ActiveDirty = true
	res.Started = sess
	return res
}

// closeActive ends the active session at now, appends the closed
// interval when it lasted at least MinSessionMS and recompacts the log.
func (s *State) closeActive(now int64, reason CloseReason) Result {
	act := s.Active
	if act == nil {
		return Result{}
	}

	end := now
	if end < act.Start {
		end = act.Start
	}
	entry := entity.LogEntry{Start: act.Start, End: end, Domain: act.Domain}

	s.Active = nil
	res := Result{ActiveDirty: true}

	if entry.DurationMS() >= MinSessionMS {
		s.Logs = Compact(append(s.Logs, entry))
		res.LogsDirty = true
		res.Closed = append(res.Closed, ClosedSession{Entry: entry, Reason: reason, Recorded: true})
	} else {
		res.Closed = append(res.Closed, ClosedSession{Entry: entry, Reason: reason})
	}
	return res
}

// EnforceIdle closes the active session once its tab has been quiet for
// longer than IdleTimeoutMS. A tab with no recorded heartbeat is left
// alone (grace period after start or restore).
func (s *State) EnforceIdle(now int64) Result {
	if s.Active == nil {
		return Result{}
	}
	last := s.LastActivity[s.Active.TabID]
	if last == 0 {
		return Result{}
	}
	if now-last > IdleTimeoutMS {
		return s.closeActive(now, ReasonIdleTimeout)
	}
	return Result{}
}

// PauseFor suppresses session starts for the given minutes and
// force-ends the current session.
func (s *State) PauseFor(minutes int, now int64) Result {
	s.PausedUntil = now + int64(minutes)*60_000
	res := Result{PauseDirty: true}
	res.merge(s.closeActive(now, ReasonPaused))
	return res
}

func (s *State) Resume() Result {
	s.PausedUntil = 0
	return Result{PauseDirty: true}
}

// ResetToday drops every log entry that ended today (local midnight
// onward) and ends the active session.
func (s *State) ResetToday(now, startOfDay int64) Result {
	// Close first so the in-progress slice is subject to the filter too.
	res := s.closeActive(now, ReasonReset)

	keep := make([]entity.LogEntry, 0, len(s.Logs))
	for _, l := range s.Logs {
		if l.End < startOfDay {
			keep = append(keep, l)
		}
	}
	s.Logs = Compact(keep)
	res.LogsDirty = true
	return res
}

// ClearData wipes the log and the active session.
func (s *State) ClearData() Result {
	s.Logs = []entity.LogEntry{}
	s.Active = nil
	return Result{LogsDirty: true, ActiveDirty: true}
}
