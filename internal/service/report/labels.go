// internal/service/report/labels.go
package report

// friendlyLabels maps export field paths to human-readable names. The
// popup and the instructor dashboard use them as column headers, so keys
// must track the export schemas.
var friendlyLabels = map[string]string{
	// Portfolio (v0.1)
	"version":                           "Schema version",
	"alias":                             "User name / tag",
	"consent":                           "Data sharing consent",
	"week_start":                        "Week begins",
	"week_end":                          "Week ends",
	"totals":                            "Total usage",
	"totals.minutes":                    "Total minutes this week",
	"totals.by_domain":                  "Minutes by site",
	"score":                             "AI Score",
	"most_active_day":                   "Most active day",
	"most_active_day.iso":               "Date",
	"most_active_day.minutes":           "Minutes",
	"change_vs_prev_week_pct":           "Change vs last week (%)",
	"streak_weeks":                      "Streak (weeks active)",
	"badge":                             "User type",
	"provenance":                        "Technical details",
	"provenance.created_at":             "Export created",
	"provenance.device_local_only":      "Stored only on this device",
	"provenance.extension_version":      "Extension version",
	"weekly_breakdown":                  "Daily usage (minutes)",
	"weekly_breakdown[].day":            "Day",
	"weekly_breakdown[].minutes":        "Minutes",

	// Attachment (v0.1)
	"schema_version":                 "Schema version",
	"session_id":                     "Session id",
	"timestamp_start":                "Window start (ISO)",
	"timestamp_end":                  "Window end (ISO)",
	"tool":                           "Tool",
	"tool.name":                      "Tool name",
	"tool.version":                   "Tool version",
	"task_type":                      "Task type",
	"pseudonymisation":               "Pseudonymisation",
	"pseudonymisation.user_hash":     "User hash (salted)",
	"pseudonymisation.context_tag":   "Context tag",
	"validator":                      "Validator",
	"validator.conformance":          "Conformance",
	"validator.ruleset":              "Ruleset",

	// Analytics (v0.1)
	"export_type":                          "Export type",
	"generated_at":                         "Generated at",
	"subject":                              "Subject",
	"subject.alias":                        "User name / tag",
	"subject.consent":                      "Data sharing consent",
	"week":                                 "This week",
	"week.start_iso":                       "Week begins (ISO)",
	"week.end_iso":                         "Week ends (ISO)",
	"week.total_minutes":                   "Total minutes this week",
	"week.per_day_minutes":                 "Daily usage (minutes)",
	"week.per_domain_minutes":              "Minutes by site",
	"week.top_domain":                      "Top AI tool",
	"week.change_vs_prev_week_pct":         "Change vs last week (%)",
	"week.streak_weeks":                    "Streak (weeks active)",
	"week.ai_score":                        "AI Score",
	"week.badge":                           "User type",
	"history":                              "History",
	"history.last_4_weeks":                 "Last 4 weeks",
	"history.last_4_weeks[].week_start":    "Week start (ISO)",
	"history.last_4_weeks[].minutes":       "Minutes",
	"sessions_sample":                      "Sessions sample",
	"sessions_sample[].start_iso":          "Start (ISO)",
	"sessions_sample[].end_iso":            "End (ISO)",
	"sessions_sample[].domain":             "Site",
	"sessions_sample[].duration_seconds":   "Duration (sec)",
	"integrity":                            "Integrity",
	"integrity.logs_count":                 "Logs count",
	"integrity.window_start_iso":           "Window start (ISO)",
	"integrity.window_end_iso":             "Window end (ISO)",
}

// FriendlyLabels returns the label map for clients that render exports.
func (s *Service) FriendlyLabels() map[string]string {
	out := make(map[string]string, len(friendlyLabels))
	for k, v := range friendlyLabels {
		out[k] = v
	}
	return out
}
