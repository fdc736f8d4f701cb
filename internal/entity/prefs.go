// internal/entity/prefs.go
package entity

// PortfolioPrefs identifies what the student shares in exports.
type PortfolioPrefs struct {
	Alias   string `json:"alias"`
	Consent bool   `json:"consent"`
}

func DefaultPortfolioPrefs() PortfolioPrefs {
	return PortfolioPrefs{Alias: "student", Consent: true}
}

// NotifyPrefs controls digest and nudge notifications.
type NotifyPrefs struct {
	NotifyWeekly       bool `json:"notifyWeekly"`
	WeeklyDay          int  `json:"weeklyDay"`  // reserved
	WeeklyHour         int  `json:"weeklyHour"` // reserved
	NotifyLongSession  bool `json:"notifyLongSession"`
	LongSessionMinutes int  `json:"longSessionMinutes"`
}

func DefaultNotifyPrefs() NotifyPrefs {
	return NotifyPrefs{
		NotifyWeekly:       true,
		WeeklyDay:          1,
		WeeklyHour:         9,
		NotifyLongSession:  true,
		LongSessionMinutes: 120,
	}
}

type AnalyticsSettings struct {
	IncludeDomains  bool               `json:"includeDomains"`
	IncludeSessions bool               `json:"includeSessions"`
	HashAlias       bool               `json:"hashAlias"`
	ContextTag      string             `json:"contextTag"`
	Validator       *ValidatorSettings `json:"validator"`
}

type ValidatorSettings struct {
	Conformance string `json:"conformance"`
	Ruleset     string `json:"ruleset"`
}

type AttachmentSettings struct {
	IncludeTopDomain bool `json:"includeTopDomain"`
}

type SaltSettings struct {
	PerInstitution string `json:"perInstitution"`
}

// Settings groups export-related preferences. The per-institution salt
// is generated once on first load and stays stable afterwards.
type Settings struct {
	Analytics  AnalyticsSettings  `json:"analytics"`
	Attachment AttachmentSettings `json:"attachment"`
	Salt       SaltSettings       `json:"salt"`
}

func DefaultSettings() Settings {
	return Settings{
		Analytics: AnalyticsSettings{
			IncludeDomains:  true,
			IncludeSessions: true,
			HashAlias:       false,
			ContextTag:      "",
			Validator:       nil,
		},
		Attachment: AttachmentSettings{IncludeTopDomain: false},
	}
}
