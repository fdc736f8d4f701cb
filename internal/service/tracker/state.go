// internal/service/tracker/state.go
package tracker

import (
	"github.com/clarahq/clara-backend/internal/entity"
)

const (
	// IdleTimeoutMS closes a session when its tab has sent no heartbeat
	// for this long.
	IdleTimeoutMS = 60_000
	// MergeGapMS is the largest same-domain gap the compactor bridges.
	MergeGapMS = 120_000
	// MinSessionMS: shorter closed sessions are discarded, not logged.
	MinSessionMS = 1000
)

// Storage keys, one-to-one with the extension's chrome.storage layout.
const (
	KeyRules           = "rules"
	KeyTrackingEnabled = "trackingEnabled"
	KeyLogs            = "logs"
	KeyPausedUntil     = "pausedUntil"
	KeyBadgeMode       = "badgeMode"
	KeyPortfolioPrefs  = "portfolioPrefs"
	KeySessions        = "sessions"
	KeyNotifyPrefs     = "notifyPrefs"
	KeySettings        = "settings"
	KeyUIFlags         = "uiFlags"
	KeyNudgedAtDay     = "nudgedAtDay"
	KeyThemePref       = "themePref"
)

// BackupKeys are the storage keys included in a raw backup.
var BackupKeys = []string{
	KeyRules, KeyTrackingEnabled, KeyLogs, KeySessions,
	KeyPausedUntil, KeyThemePref, KeyBadgeMode, KeyUIFlags,
}

// State is one user's tracker state. It is owned by an Engine and must
// only be touched with the engine's lock held; the reducer in reducer.go
// is the only place transitions happen.
type State struct {
	Rules           []string
	TrackingEnabled bool
	PausedUntil     int64
	BadgeMode       string
	Logs            []entity.LogEntry
	Active          *entity.ActiveSession
	// LastActivity maps tabId to the last heartbeat timestamp (ms).
	LastActivity map[int]int64
}

func NewState() *State {
	return &State{
		TrackingEnabled: true,
		BadgeMode:       "minutes",
		Logs:            []entity.LogEntry{},
		LastActivity:    map[int]int64{},
	}
}

// CloseReason says why a session ended.
type CloseReason string

const (
	ReasonTabSwitch   CloseReason = "tab switch"
	ReasonLeftRules   CloseReason = "tab left rules"
	ReasonTabClosed   CloseReason = "tab closed"
	ReasonWindowBlur  CloseReason = "window blur"
	ReasonIdleTimeout CloseReason = "idle timeout"
	ReasonPaused      CloseReason = "paused"
	ReasonReset       CloseReason = "reset today"
	ReasonDisabled    CloseReason = "tracking disabled"
	ReasonCleared     CloseReason = "cleared"
	ReasonStale       CloseReason = "stale on restore"
)

// ClosedSession reports one ended session. Recorded is false when the
// session was under MinSessionMS and therefore dropped.
type ClosedSession struct {
	Entry    entity.LogEntry
	Reason   CloseReason
	Recorded bool
}

// Result lists what a transition changed, so the caller knows which keys
// to persist. The reducer itself never performs I/O.
type Result struct {
	ActiveDirty bool
	LogsDirty   bool
	PauseDirty  bool
	Closed      []ClosedSession
	Started     *entity.ActiveSession
}

func (r *Result) merge(other Result) {
	r.ActiveDirty = r.ActiveDirty || other.ActiveDirty
	r.LogsDirty = r.LogsDirty || other.LogsDirty
	r.PauseDirty = r.PauseDirty || other.PauseDirty
	r.Closed = append(r.Closed, other.Closed...)
	if other.Started != nil {
		r.Started = other.Started
	}
}
