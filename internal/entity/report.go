// internal/entity/report.go
package entity

import (
	"bytes"
	"encoding/json"
	"errors"
)

// DomainMinutes is a minutes-by-domain breakdown that marshals to a JSON
// object with its entries in order (highest minutes first), the way the
// extension's exports lay it out.
type DomainMinutes []DomainMinute

type DomainMinute struct {
	Domain  string
	Minutes int
}

func (d DomainMinutes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dm := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(dm.Domain)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(dm.Minutes)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *DomainMinutes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("by_domain: expected JSON object")
	}

	out := DomainMinutes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var minutes int
		if err := dec.Decode(&minutes); err != nil {
			return err
		}
		out = append(out, DomainMinute{Domain: key, Minutes: minutes})
	}
	*d = out
	return nil
}

type DayMinutes struct {
	Day     string `json:"day"`
	Minutes int    `json:"minutes"`
}

type MostActiveDay struct {
	ISO     string `json:"iso"`
	Minutes int    `json:"minutes"`
}

type Provenance struct {
	CreatedAt        string `json:"created_at"`
	DeviceLocalOnly  bool   `json:"device_local_only"`
	ExtensionVersion string `json:"extension_version"`
}

type PortfolioTotals struct {
	Minutes  int           `json:"minutes"`
	ByDomain DomainMinutes `json:"by_domain"`
}

// PortfolioExport is the portfolio v0.1 schema.
type PortfolioExport struct {
	Schema              string          `json:"$schema"`
	Version             string          `json:"version"`
	Alias               string          `json:"alias"`
	Consent             bool            `json:"consent"`
	WeekStart           string          `json:"week_start"`
	WeekEnd             string          `json:"week_end"`
	Totals              PortfolioTotals `json:"totals"`
	Score               int             `json:"score"`
	MostActiveDay       MostActiveDay   `json:"most_active_day"`
	ChangeVsPrevWeekPct *float64        `json:"change_vs_prev_week_pct"`
	StreakWeeks         int             `json:"streak_weeks"`
	Badge               string          `json:"badge"`
	Provenance          Provenance      `json:"provenance"`
	WeeklyBreakdown     []DayMinutes    `json:"weekly_breakdown"`
}

type HistoryWeek struct {
	WeekStart string `json:"week_start"`
	Minutes   int    `json:"minutes"`
}

type ExportHistory struct {
	Last4Weeks []HistoryWeek `json:"last_4_weeks"`
}

type ExportIntegrity struct {
	LogsCount      int    `json:"logs_count"`
	WindowStartISO string `json:"window_start_iso"`
	WindowEndISO   string `json:"window_end_iso"`
}

// WeeklyPortfolioExport extends the single-week snapshot with a four-week
// history and an integrity block.
type WeeklyPortfolioExport struct {
	PortfolioExport
	History   ExportHistory   `json:"history"`
	Integrity ExportIntegrity `json:"integrity"`
}

type ExportSubject struct {
	Alias   string `json:"alias"`
	Consent bool   `json:"consent"`
}

type AttachmentWeek struct {
	StartISO     string `json:"start_iso"`
	EndISO       string `json:"end_iso"`
	TotalMinutes int    `json:"total_minutes"`
	AIScore      int    `json:"ai_score"`
	TopDomain    string `json:"top_domain,omitempty"`
}

// AttachmentExport is the attachment v0.1 schema.
type AttachmentExport struct {
	Version     string         `json:"version"`
	Subject     ExportSubject  `json:"subject"`
	Week        AttachmentWeek `json:"week"`
	GeneratedAt string         `json:"generated_at"`
	ExportType  string         `json:"export_type"`
}

type ExportTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type AnalyticsWeek struct {
	StartISO            string        `json:"start_iso"`
	EndISO              string        `json:"end_iso"`
	TotalMinutes        int           `json:"total_minutes"`
	PerDayMinutes       []int         `json:"per_day_minutes"`
	PerDomainMinutes    DomainMinutes `json:"per_domain_minutes,omitempty"`
	TopDomain           string        `json:"top_domain"`
	ChangeVsPrevWeekPct *float64      `json:"change_vs_prev_week_pct"`
	StreakWeeks         int           `json:"streak_weeks"`
	AIScore             int           `json:"ai_score"`
	Badge               string        `json:"badge"`
}

type SessionSample struct {
	StartISO        string `json:"start_iso"`
	EndISO          string `json:"end_iso"`
	Domain          string `json:"domain"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type Pseudonymisation struct {
	UserHash string `json:"user_hash"`
}

// AnalyticsExport is the analytics v0.1 schema.
type AnalyticsExport struct {
	SchemaVersion    string             `json:"schema_version"`
	ExportType       string             `json:"export_type"`
	GeneratedAt      string             `json:"generated_at"`
	Tool             ExportTool         `json:"tool"`
	Subject          ExportSubject      `json:"subject"`
	Week             AnalyticsWeek      `json:"week"`
	History          ExportHistory      `json:"history"`
	Integrity        ExportIntegrity    `json:"integrity"`
	SessionsSample   []SessionSample    `json:"sessions_sample,omitempty"`
	Pseudonymisation *Pseudonymisation  `json:"pseudonymisation,omitempty"`
	ContextTag       string             `json:"context_tag,omitempty"`
	Validator        *ValidatorSettings `json:"validator,omitempty"`
}
