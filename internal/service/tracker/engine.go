// internal/service/tracker/engine.go
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/repository"
	"github.com/clarahq/clara-backend/internal/service/rules"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
)

// Notifier delivers digest/nudge notifications to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, message string) error
}

// Engine owns one user's tracker state. Every mutation goes through the
// engine's lock, so event handlers never interleave mid-transition; the
// reducer re-checks state under the lock, which keeps replayed or
// duplicated events harmless.
type Engine struct {
	mu       sync.Mutex
	userID   uuid.UUID
	store    repository.StateRepository
	notifier Notifier
	loc      *time.Location

	// now is epoch ms; swapped in tests to pin session durations.
	now func() int64

	state       *State
	prefs       entity.NotifyPrefs
	nudgedAtDay string
	hydrated    bool
}

func NewEngine(userID uuid.UUID, store repository.StateRepository, notifier Notifier, loc *time.Location) *Engine {
	return &Engine{
		userID:   userID,
		store:    store,
		notifier: notifier,
		loc:      loc,
		now:      func() int64 { return time.Now().UnixMilli() },
		state:    NewState(),
		prefs:    entity.DefaultNotifyPrefs(),
	}
}

func (e *Engine) UserID() uuid.UUID { return e.userID }

// hydrate loads the persisted state, seeds defaults on first contact,
// repairs the log by compaction and revalidates a restored active
// session. Caller holds e.mu.
func (e *Engine) hydrate(ctx context.Context) error {
	if e.hydrated {
		return nil
	}

	stored, err := e.store.Get(ctx, e.userID,
		KeyRules, KeyTrackingEnabled, KeyLogs, KeyPausedUntil, KeyBadgeMode,
		KeySessions, KeyNotifyPrefs, KeySettings, KeyNudgedAtDay)
	if err != nil {
		return fmt.Errorf("failed to load tracker state: %w", err)
	}

	defaults := map[string]interface{}{}
	s := NewState()

	if !decodeKey(stored, KeyRules, &s.Rules) || len(s.Rules) == 0 {
		s.Rules = append([]string{}, rules.DefaultRules...)
		defaults[KeyRules] = s.Rules
	}
	if !decodeKey(stored, KeyTrackingEnabled, &s.TrackingEnabled) {
		s.TrackingEnabled = true
		defaults[KeyTrackingEnabled] = true
	}
	if !decodeKey(stored, KeyLogs, &s.Logs) {
		s.Logs = []entity.LogEntry{}
		defaults[KeyLogs] = s.Logs
	}
	if !decodeKey(stored, KeyPausedUntil, &s.PausedUntil) {
		defaults[KeyPausedUntil] = 0
	}
	if !decodeKey(stored, KeyBadgeMode, &s.BadgeMode) || s.BadgeMode == "" {
		s.BadgeMode = "minutes"
		defaults[KeyBadgeMode] = "minutes"
	}
	if _, ok := stored[KeyPortfolioPrefs]; !ok {
		defaults[KeyPortfolioPrefs] = entity.DefaultPortfolioPrefs()
	}
	if _, ok := stored[KeySettings]; !ok {
		settings := entity.DefaultSettings()
		settings.Salt.PerInstitution = uuid.Must(uuid.NewV4()).String()
		defaults[KeySettings] = settings
	}

	prefs := entity.DefaultNotifyPrefs()
	decodeKey(stored, KeyNotifyPrefs, &prefs)
	e.prefs = prefs
	decodeKey(stored, KeyNudgedAtDay, &e.nudgedAtDay)

	// Boot repair: historical logs may predate the merge rule.
	compacted := Compact(s.Logs)
	if len(compacted) != len(s.Logs) {
		s.Logs = compacted
		defaults[KeyLogs] = compacted
	}

	var sessions entity.SessionsEnvelope
	decodeKey(stored, KeySessions, &sessions)
	s.Active = sessions.Active

	e.state = s
	e.hydrated = true

	if len(defaults) > 0 {
		if err := e.store.Set(ctx, e.userID, defaults); err != nil {
			return fmt.Errorf("failed to seed tracker defaults: %w", err)
		}
	}

	e.revalidateRestored(ctx)
	return nil
}

// revalidateRestored handles an active session carried over from a
// previous process: if its domain no longer matches the rules the
// session is closed, credited at most up to the idle window. A session
// that still matches keeps running; the heartbeat grace period covers it
// until the extension's next recheck confirms the tab.
func (e *Engine) revalidateRestored(ctx context.Context) {
	act := e.state.Active
	if act == nil {
		return
	}
	if rules.Matches("https://"+act.Domain+"/", e.state.Rules) {
		return
	}

	end := e.now()
	if limit := act.Start + IdleTimeoutMS; limit < end {
		end = limit
	}
	res := e.state.closeActive(end, ReasonStale)
	if err := e.persist(ctx, res); err != nil {
		log.Printf("tracker: failed to persist stale-session close for %s: %v", e.userID, err)
	}
}

func decodeKey(stored map[string]json.RawMessage, key string, dest interface{}) bool {
	raw, ok := stored[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("tracker: dropping malformed %q value: %v", key, err)
		return false
	}
	return true
}

// persist writes the keys a Result marked dirty. Caller holds e.mu.
func (e *Engine) persist(ctx context.Context, res Result) error {
	values := map[string]interface{}{}
	if res.ActiveDirty {
		values[KeySessions] = entity.SessionsEnvelope{Active: e.state.Active}
	}
	if res.LogsDirty {
		values[KeyLogs] = e.state.Logs
	}
	if res.PauseDirty {
		values[KeyPausedUntil] = e.state.PausedUntil
	}
	if len(values) == 0 {
		return nil
	}
	if err := e.store.Set(ctx, e.userID, values); err != nil {
		return fmt.Errorf("failed to persist tracker state: %w", err)
	}
	return nil
}

// ProcessEvent runs one browser event through the state machine.
func (e *Engine) ProcessEvent(ctx context.Context, ev entity.TrackerEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}

	res := e.state.Apply(ev, e.now())
	for _, c := range res.Closed {
		if c.Recorded {
			log.Printf("tracker: %s session closed (%s) domain=%s dur=%ds",
				e.userID, c.Reason, c.Entry.Domain, c.Entry.DurationMS()/1000)
		}
	}
	return e.persist(ctx, res)
}

// Tick enforces the idle timeout and the long-session nudge. Driven by
// the manager's scheduler every few seconds.
func (e *Engine) Tick(ctx context.Context, now int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hydrated {
		return
	}

	res := e.state.EnforceIdle(now)
	if err := e.persist(ctx, res); err != nil {
		log.Printf("tracker: tick persist failed for %s: %v", e.userID, err)
	}
	e.maybeNudge(ctx, now)
}

func (e *Engine) maybeNudge(ctx context.Context, now int64) {
	if !e.prefs.NotifyLongSession || e.notifier == nil {
		return
	}
	act := e.state.Active
	if act == nil || now < e.state.PausedUntil {
		return
	}

	threshold := e.prefs.LongSessionMinutes
	if threshold <= 0 {
		threshold = 120
	}
	durMin := (now - act.Start) / 60_000
	if durMin < int64(threshold) {
		return
	}

	todayKey := utils.ISODate(now, e.loc)
	if e.nudgedAtDay == todayKey {
		return
	}

	msg := fmt.Sprintf("You've been on %s for about %d minutes. Take a short break?", act.Domain, durMin)
	if err := e.notifier.Notify(ctx, e.userID, entity.NotificationLongSession, "Long AI session", msg); err != nil {
		log.Printf("tracker: long-session nudge failed for %s: %v", e.userID, err)
		return
	}
	e.nudgedAtDay = todayKey
	if err := e.store.Set(ctx, e.userID, map[string]interface{}{KeyNudgedAtDay: todayKey}); err != nil {
		log.Printf("tracker: failed to persist nudge marker for %s: %v", e.userID, err)
	}
}

// PauseFor suppresses tracking for the given minutes.
func (e *Engine) PauseFor(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		minutes = 15
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	return e.persist(ctx, e.state.PauseFor(minutes, e.now()))
}

// PauseForToday pauses until local end of day.
func (e *Engine) PauseForToday(ctx context.Context) error {
	now := e.now()
	mins := int((utils.EndOfDay(now, e.loc) - now) / 60_000)
	if mins < 1 {
		mins = 1
	}
	return e.PauseFor(ctx, mins)
}

func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	return e.persist(ctx, e.state.Resume())
}

// ResetToday drops today's logs and ends the active session.
func (e *Engine) ResetToday(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	now := e.now()
	return e.persist(ctx, e.state.ResetToday(now, utils.StartOfDay(now, e.loc)))
}

// ClearData wipes the session log entirely.
func (e *Engine) ClearData(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	return e.persist(ctx, e.state.ClearData())
}

func (e *Engine) AddRule(ctx context.Context, value string) error {
	value = rules.Normalize(value)
	if value == "" {
		return fmt.Errorf("rule cannot be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	for _, r := range e.state.Rules {
		if r == value {
			return nil
		}
	}
	e.state.Rules = append(e.state.Rules, value)
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyRules: e.state.Rules})
}

func (e *Engine) RemoveRule(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	next := make([]string, 0, len(e.state.Rules))
	for _, r := range e.state.Rules {
		if r != value && r != rules.Normalize(value) {
			next = append(next, r)
		}
	}
	e.state.Rules = next
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyRules: next})
}

func (e *Engine) ResetRules(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	e.state.Rules = append([]string{}, rules.DefaultRules...)
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyRules: e.state.Rules})
}

func (e *Engine) SetTrackingEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	e.state.TrackingEnabled = enabled
	var res Result
	if !enabled {
		res = e.state.closeActive(e.now(), ReasonDisabled)
	}
	if err := e.persist(ctx, res); err != nil {
		return err
	}
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyTrackingEnabled: enabled})
}

func (e *Engine) SetBadgeMode(ctx context.Context, mode string) error {
	if mode == "" {
		mode = "minutes"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	e.state.BadgeMode = mode
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyBadgeMode: mode})
}

// Snapshot returns the full state the extension popup consumes.
func (e *Engine) Snapshot(ctx context.Context) (*entity.TrackerSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return nil, err
	}

	prefs := entity.DefaultPortfolioPrefs()
	if stored, err := e.store.Get(ctx, e.userID, KeyPortfolioPrefs); err == nil {
		decodeKey(stored, KeyPortfolioPrefs, &prefs)
	}

	logs := make([]entity.LogEntry, len(e.state.Logs))
	copy(logs, e.state.Logs)

	snap := &entity.TrackerSnapshot{
		Rules:           append([]string{}, e.state.Rules...),
		TrackingEnabled: e.state.TrackingEnabled,
		Logs:            logs,
		PausedUntil:     e.state.PausedUntil,
		BadgeMode:       e.state.BadgeMode,
		PortfolioPrefs:  prefs,
	}
	if e.state.Active != nil {
		act := *e.state.Active
		snap.Active = &act
	}
	return snap, nil
}

// Usage returns the log list plus the in-progress session for reporting.
func (e *Engine) Usage(ctx context.Context) ([]entity.LogEntry, *entity.ActiveSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return nil, nil, err
	}
	logs := make([]entity.LogEntry, len(e.state.Logs))
	copy(logs, e.state.Logs)
	var act *entity.ActiveSession
	if e.state.Active != nil {
		cp := *e.state.Active
		act = &cp
	}
	return logs, act, nil
}

// Badge computes the toolbar badge for the user's badge mode.
func (e *Engine) Badge(ctx context.Context) (entity.Badge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return entity.Badge{}, err
	}

	now := e.now()
	switch {
	case e.state.BadgeMode == "none":
		return entity.Badge{}, nil
	case now < e.state.PausedUntil:
		return entity.Badge{Text: "⏸", Color: "#f59e0b"}, nil
	case e.state.BadgeMode == "onoff":
		if e.state.TrackingEnabled {
			return entity.Badge{Text: "ON", Color: "#22c55e"}, nil
		}
		return entity.Badge{Text: "OFF", Color: "#9ca3af"}, nil
	}

	// Default: minutes tracked today.
	sod := utils.StartOfDay(now, e.loc)
	var sec float64
	for _, l := range e.state.Logs {
		s, en := l.Start, l.End
		if s < sod {
			s = sod
		}
		if en > now {
			en = now
		}
		if en > s {
			sec += float64(en-s) / 1000
		}
	}
	if act := e.state.Active; act != nil {
		s := act.Start
		if s < sod {
			s = sod
		}
		sec += float64(now-s) / 1000
	}
	return entity.Badge{Text: fmt.Sprintf("%d", int(sec/60)), Color: "#3b82f6"}, nil
}

// Refresh drops the cached state so the next operation re-reads the
// store. Called after out-of-band writes (backup import, admin edits).
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hydrated = false
	e.state = NewState()
}

// SetNotifyPrefs persists notification preferences and refreshes the
// cached copy the tick loop reads.
func (e *Engine) SetNotifyPrefs(ctx context.Context, prefs entity.NotifyPrefs) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return err
	}
	if err := e.store.Set(ctx, e.userID, map[string]interface{}{KeyNotifyPrefs: prefs}); err != nil {
		return err
	}
	e.prefs = prefs
	return nil
}

func (e *Engine) SetPortfolioPrefs(ctx context.Context, prefs entity.PortfolioPrefs) error {
	if prefs.Alias == "" {
		prefs.Alias = "student"
	}
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyPortfolioPrefs: prefs})
}

// Settings returns the stored export settings, defaults when unset.
func (e *Engine) Settings(ctx context.Context) (entity.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return entity.Settings{}, err
	}

	settings := entity.DefaultSettings()
	stored, err := e.store.Get(ctx, e.userID, KeySettings)
	if err != nil {
		return settings, err
	}
	decodeKey(stored, KeySettings, &settings)
	return settings, nil
}

// SetSettings persists export settings. The salt is never writable from
// outside; the stored one is carried over.
func (e *Engine) SetSettings(ctx context.Context, settings entity.Settings) error {
	current, err := e.Settings(ctx)
	if err != nil {
		return err
	}
	settings.Salt = current.Salt

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeySettings: settings})
}

// UIFlags is an opaque blob of popup state the extension syncs.
func (e *Engine) UIFlags(ctx context.Context) (map[string]interface{}, error) {
	stored, err := e.store.Get(ctx, e.userID, KeyUIFlags)
	if err != nil {
		return nil, err
	}
	flags := map[string]interface{}{}
	decodeKey(stored, KeyUIFlags, &flags)
	return flags, nil
}

func (e *Engine) SetUIFlags(ctx context.Context, flags map[string]interface{}) error {
	return e.store.Set(ctx, e.userID, map[string]interface{}{KeyUIFlags: flags})
}

// NotifyPrefs returns the cached notification preferences.
func (e *Engine) NotifyPrefs(ctx context.Context) (entity.NotifyPrefs, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return entity.NotifyPrefs{}, err
	}
	return e.prefs, nil
}
