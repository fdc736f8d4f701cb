// internal/service/insights/insights_test.go
package insights

import (
	"context"
	"testing"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/service/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyInsightFallbackWithoutKey(t *testing.T) {
	svc := NewInsightsService("")
	assert.False(t, svc.Enabled())

	stats := &report.WeekStats{
		TotalMinutes:  245,
		TopDomain:     "chatgpt.com",
		MostActiveDay: entity.MostActiveDay{ISO: "2026-08-26", Minutes: 125},
	}

	insight, err := svc.WeeklyInsight(context.Background(), stats)
	require.NoError(t, err)
	assert.Equal(t, "245 minutes of AI tools this week", insight.Headline)
	assert.Equal(t, "healthy", insight.Balance)
	assert.Contains(t, insight.Observation, "chatgpt.com")
}

func TestFallbackBalanceBands(t *testing.T) {
	svc := NewInsightsService("")

	cases := []struct {
		minutes int
		balance string
	}{
		{minutes: 240, balance: "healthy"},
		{minutes: 300, balance: "watch"},
		{minutes: 900, balance: "watch"},
		{minutes: 960, balance: "heavy"},
	}
	for _, tc := range cases {
		insight := svc.fallback(&report.WeekStats{TotalMinutes: tc.minutes})
		assert.Equal(t, tc.balance, insight.Balance, "minutes=%d", tc.minutes)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	svc := NewInsightsService("key")

	raw := "```json\n{\"headline\": \"ok\", \"balance\": \"healthy\"\n```"
	cleaned := svc.cleanJSONResponse(raw)
	assert.Equal(t, `{"headline": "ok", "balance": "healthy"}`, cleaned)

	prefixed := "Here you go: {\"headline\": \"ok\"}"
	assert.Equal(t, `{"headline": "ok"}`, svc.cleanJSONResponse(prefixed))
}
