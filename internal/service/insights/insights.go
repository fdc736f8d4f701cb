// internal/service/insights/insights.go
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/service/report"
	"github.com/clarahq/clara-backend/pkg/utils"
)

type InsightsService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type OpenAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

func NewInsightsService(apiKey string) *InsightsService {
	return &InsightsService{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1/chat/completions",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured. Without one the
// insight endpoints return the fallback directly.
func (s *InsightsService) Enabled() bool {
	return s.apiKey != ""
}

// WeeklyInsight turns a week of aggregated usage into a short
// natural-language read on the student's AI habits.
func (s *InsightsService) WeeklyInsight(ctx context.Context, stats *report.WeekStats) (*entity.WeeklyInsight, error) {
	if !s.Enabled() {
		return s.fallback(stats), nil
	}

	request := OpenAIRequest{
		Model: "gpt-4o",
		Messages: []Message{
			{
				Role:    "system",
				Content: s.getSystemPrompt(),
			},
			{
				Role:    "user",
				Content: s.buildPrompt(stats),
			},
		},
		Temperature: 0.1,
		MaxTokens:   400,
	}

	response, err := s.callOpenAI(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI: %w", err)
	}

	cleanResponse := s.cleanJSONResponse(response)

	var insight entity.WeeklyInsight
	if err := json.Unmarshal([]byte(cleanResponse), &insight); err != nil {
		fmt.Printf("Failed to parse AI response: %v\nRaw response: %s\n", err, response)
		return s.fallback(stats), nil
	}

	return &insight, nil
}

func (s *InsightsService) cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	if !strings.HasPrefix(response, "{") {
		if start := strings.Index(response, "{"); start != -1 {
			response = response[start:]
		}
	}

	return s.fixIncompleteJSON(response)
}

func (s *InsightsService) fixIncompleteJSON(jsonStr string) string {
	openBraces := strings.Count(jsonStr, "{")
	closeBraces := strings.Count(jsonStr, "}")

	if openBraces > closeBraces {
		for i := 0; i < openBraces-closeBraces; i++ {
			jsonStr += "}"
		}
	}

	return jsonStr
}

func (s *InsightsService) getSystemPrompt() string {
	return `You are a study coach reviewing a student's weekly AI tool usage.

TASK: Give a short, factual read on the week. Be specific, quote the
numbers you are given, never moralize.

BALANCE LEVELS:
- healthy: under 5 hours of AI tools this week
- watch: 5 to 15 hours
- heavy: over 15 hours

JSON FORMAT (no markdown):
{
  "headline": "One sentence summary with numbers",
  "balance": "healthy|watch|heavy",
  "observation": "The single most notable pattern this week",
  "suggestions": ["one or two concrete, low-effort suggestions"]
}`
}

func (s *InsightsService) buildPrompt(stats *report.WeekStats) string {
	change := "n/a (no data last week)"
	if stats.ChangeVsPrevWeekPct != nil {
		change = fmt.Sprintf("%+.1f%%", *stats.ChangeVsPrevWeekPct)
	}

	return fmt.Sprintf(`WEEK %s

- Total AI time: %d minutes
- Balance score: %d (%s)
- Most active day: %s (%d minutes)
- Change vs previous week: %s
- Weekly streak: %d

TIME PER TOOL:
%s

TASK: Summarize the week and suggest how to keep or improve the balance.`,
		utils.FormatPeriod(time.UnixMilli(stats.WeekStart).UTC(), time.UnixMilli(stats.WeekEnd).UTC()),
		stats.TotalMinutes,
		stats.Score,
		stats.Badge,
		stats.MostActiveDay.ISO,
		stats.MostActiveDay.Minutes,
		change,
		stats.StreakWeeks,
		formatDomainsForPrompt(stats.ByDomain))
}

func formatDomainsForPrompt(byDomain entity.DomainMinutes) string {
	if len(byDomain) == 0 {
		return "No usage recorded"
	}

	var result strings.Builder
	for i, d := range byDomain {
		if i > 0 {
			result.WriteString(", ")
		}
		result.WriteString(fmt.Sprintf("%s (%d min)", d.Domain, d.Minutes))
	}
	return result.String()
}

func (s *InsightsService) callOpenAI(ctx context.Context, request OpenAIRequest) (string, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	var openAIResp OpenAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return "", err
	}

	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return openAIResp.Choices[0].Message.Content, nil
}

// fallback builds a rule-based insight when the model is unavailable or
// returns something unparseable.
func (s *InsightsService) fallback(stats *report.WeekStats) *entity.WeeklyInsight {
	balance := "healthy"
	hours := stats.TotalMinutes / 60
	switch {
	case hours > 15:
		balance = "heavy"
	case hours >= 5:
		balance = "watch"
	}

	insight := &entity.WeeklyInsight{
		Headline:    fmt.Sprintf("%d minutes of AI tools this week", stats.TotalMinutes),
		Balance:     balance,
		Observation: fmt.Sprintf("Most active on %s with %d minutes", stats.MostActiveDay.ISO, stats.MostActiveDay.Minutes),
		Suggestions: []string{},
	}
	if stats.TopDomain != "" {
		insight.Observation = fmt.Sprintf("%s took the largest share; most active on %s", stats.TopDomain, stats.MostActiveDay.ISO)
	}
	return insight
}
