// internal/entity/tracker.go
package entity

// Timestamps on tracker data are epoch milliseconds, the format the
// extension keeps in chrome.storage and ships in its backups.

// LogEntry is one closed usage session.
type LogEntry struct {
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Domain string `json:"domain"`
}

func (l LogEntry) DurationMS() int64 {
	if l.End < l.Start {
		return 0
	}
	return l.End - l.Start
}

// ActiveSession is the single in-progress session of a user, if any.
type ActiveSession struct {
	TabID  int    `json:"tabId"`
	Domain string `json:"domain"`
	Start  int64  `json:"start"`
}

// Browser event types forwarded by the extension.
const (
	EventTabActivated       = "tab_activated"
	EventTabUpdated         = "tab_updated"
	EventTabRemoved         = "tab_removed"
	EventWindowFocusChanged = "window_focus_changed"
	EventHeartbeat          = "heartbeat"
	EventRecheck            = "recheck"
)

// TrackerEvent is a self-describing browser event. The server cannot
// inspect tabs, so each event carries the tab identity and URL it is
// about; recheck events describe the currently focused tab.
type TrackerEvent struct {
	Type     string `json:"type" binding:"required"`
	TabID    int    `json:"tabId"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
	Status   string `json:"status,omitempty"`
	TS       int64  `json:"ts,omitempty"`
}

type BatchTrackerEventsRequest struct {
	Events []TrackerEvent `json:"events" binding:"required,dive"`
}

// TrackerSnapshot mirrors the extension's GET_STATE response.
type TrackerSnapshot struct {
	Rules           []string       `json:"rules"`
	TrackingEnabled bool           `json:"trackingEnabled"`
	Logs            []LogEntry     `json:"logs"`
	Active          *ActiveSession `json:"active"`
	PausedUntil     int64          `json:"pausedUntil"`
	BadgeMode       string         `json:"badgeMode"`
	PortfolioPrefs  PortfolioPrefs `json:"portfolioPrefs"`
}

// Badge is the computed toolbar badge (text + background color).
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

type PauseRequest struct {
	Minutes int `json:"minutes"`
}

type RuleRequest struct {
	Value string `json:"value" binding:"required"`
}

type BadgeModeRequest struct {
	Value string `json:"value"`
}

type TrackingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// BackupPayload is the raw storage passthrough for BACKUP_EXPORT /
// BACKUP_IMPORT. Pointers distinguish "absent" from zero values on import.
type BackupPayload struct {
	Rules           []string                  `json:"rules,omitempty"`
	TrackingEnabled *bool                     `json:"trackingEnabled,omitempty"`
	Logs            []LogEntry                `json:"logs,omitempty"`
	Sessions        *SessionsEnvelope         `json:"sessions,omitempty"`
	PausedUntil     *int64                    `json:"pausedUntil,omitempty"`
	ThemePref       string                    `json:"themePref,omitempty"`
	BadgeMode       string                    `json:"badgeMode,omitempty"`
	UIFlags         map[string]interface{}    `json:"uiFlags,omitempty"`
}

// SessionsEnvelope wraps the persisted active session the way the
// extension stores it ({"active": ...}).
type SessionsEnvelope struct {
	Active *ActiveSession `json:"active"`
}

type BackupExportResponse struct {
	OK         bool                   `json:"ok"`
	Data       map[string]interface{} `json:"data"`
	ExportedAt string                 `json:"exported_at"`
}
