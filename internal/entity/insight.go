// internal/entity/insight.go
package entity

// WeeklyInsight is the model-generated commentary on a week of AI usage.
type WeeklyInsight struct {
	Headline    string   `json:"headline"`
	Balance     string   `json:"balance"` // healthy | watch | heavy
	Observation string   `json:"observation"`
	Suggestions []string `json:"suggestions"`
}
