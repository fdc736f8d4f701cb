// internal/service/report/weekly.go
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
)

// UsageSource hands out a user's session log plus the in-progress
// session, normally the tracker manager.
type UsageSource interface {
	Usage(ctx context.Context, userID uuid.UUID) ([]entity.LogEntry, *entity.ActiveSession, error)
}

// WeekStats is one aggregated week.
type WeekStats struct {
	WeekStart int64 `json:"week_start"`
	WeekEnd   int64 `json:"week_end"`
	// PerDayMinutes is Monday..Sunday.
	PerDayMinutes [7]int               `json:"per_day_minutes"`
	TotalMinutes  int                  `json:"total_minutes"`
	ByDomain      entity.DomainMinutes `json:"by_domain"`
	TopDomain     string               `json:"top_domain"`
	MostActiveDay entity.MostActiveDay `json:"most_active_day"`
	Score         int                  `json:"score"`
	Badge         string               `json:"badge"`
	// ChangeVsPrevWeekPct is nil when the previous week had no usage.
	ChangeVsPrevWeekPct *float64 `json:"change_vs_prev_week_pct"`
	StreakWeeks         int      `json:"streak_weeks"`
}

// effectiveLogs appends the in-progress session as a closed interval
// ending at now, so reports include time still being accumulated.
func effectiveLogs(logs []entity.LogEntry, active *entity.ActiveSession, now int64) []entity.LogEntry {
	if active == nil || now <= active.Start {
		return logs
	}
	out := make([]entity.LogEntry, len(logs), len(logs)+1)
	copy(out, logs)
	return append(out, entity.LogEntry{Start: active.Start, End: now, Domain: active.Domain})
}

// overlapSeconds returns the seconds of l inside [from, to).
func overlapSeconds(l entity.LogEntry, from, to int64) float64 {
	s, e := l.Start, l.End
	if s < from {
		s = from
	}
	if e > to {
		e = to
	}
	if e <= s {
		return 0
	}
	return float64(e-s) / 1000
}

// ComputeWeek aggregates the week containing ts. Per-day minutes come
// from day-clipped seconds rounded per slot; the weekly total is the sum
// of the day slots, so the numbers in the breakdown always add up.
func ComputeWeek(logs []entity.LogEntry, ts int64, loc *time.Location) WeekStats {
	days := utils.DayStarts(ts, loc)
	stats := WeekStats{
		WeekStart: days[0],
		WeekEnd:   days[7] - 1,
	}

	daySec := [7]float64{}
	domainSec := map[string]float64{}
	for _, l := range logs {
		for i := 0; i < 7; i++ {
			daySec[i] += overlapSeconds(l, days[i], days[i+1])
		}
		if sec := overlapSeconds(l, days[0], days[7]); sec > 0 {
			domainSec[l.Domain] += sec
		}
	}

	for i, sec := range daySec {
		stats.PerDayMinutes[i] = int(math.Round(sec / 60))
		stats.TotalMinutes += stats.PerDayMinutes[i]
	}

	for domain, sec := range domainSec {
		min := int(math.Round(sec / 60))
		if min > 0 {
			stats.ByDomain = append(stats.ByDomain, entity.DomainMinute{Domain: domain, Minutes: min})
		}
	}
	sort.Slice(stats.ByDomain, func(i, j int) bool {
		a, b := stats.ByDomain[i], stats.ByDomain[j]
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.Domain < b.Domain
	})
	if len(stats.ByDomain) > 0 {
		stats.TopDomain = stats.ByDomain[0].Domain
	}

	// First day wins ties; an empty week reports Monday with 0 minutes.
	bestIdx := 0
	for i := 1; i < 7; i++ {
		if stats.PerDayMinutes[i] > stats.PerDayMinutes[bestIdx] {
			bestIdx = i
		}
	}
	stats.MostActiveDay = entity.MostActiveDay{
		ISO:     utils.ISODate(days[bestIdx], loc),
		Minutes: stats.PerDayMinutes[bestIdx],
	}

	stats.Score = CalcScore(stats.TotalMinutes)
	stats.Badge = BadgeLabel(stats.Score)
	return stats
}

// weekTotalMinutes is ComputeWeek reduced to the total, for the
// change/streak walks.
func weekTotalMinutes(logs []entity.LogEntry, ts int64, loc *time.Location) int {
	days := utils.DayStarts(ts, loc)
	total := 0
	for i := 0; i < 7; i++ {
		var sec float64
		for _, l := range logs {
			sec += overlapSeconds(l, days[i], days[i+1])
		}
		total += int(math.Round(sec / 60))
	}
	return total
}

const maxStreakWeeks = 52

// prevWeekStart steps one week back. Walking through the instant just
// before the week start keeps DST-shortened and -lengthened weeks on
// their Monday boundaries; a fixed 168h step drifts across transitions.
func prevWeekStart(weekStart int64, loc *time.Location) int64 {
	return utils.StartOfWeek(weekStart-1, loc)
}

// FillTrends adds the previous-week change and the streak (counting the
// given week itself) to stats.
func FillTrends(stats *WeekStats, logs []entity.LogEntry, loc *time.Location) {
	prev := weekTotalMinutes(logs, prevWeekStart(stats.WeekStart, loc), loc)
	if prev > 0 {
		pct := utils.RoundToOneDecimal(float64(stats.TotalMinutes-prev) / float64(prev) * 100)
		stats.ChangeVsPrevWeekPct = &pct
	}

	ts := stats.WeekStart
	for i := 0; i < maxStreakWeeks; i++ {
		min := stats.TotalMinutes
		if i > 0 {
			min = weekTotalMinutes(logs, ts, loc)
		}
		if min <= 0 {
			break
		}
		stats.StreakWeeks++
		ts = prevWeekStart(ts, loc)
	}
}

// History returns the totals of the n weeks ending with the week
// containing ts, oldest first.
func History(logs []entity.LogEntry, ts int64, n int, loc *time.Location) []entity.HistoryWeek {
	starts := make([]int64, 0, n)
	ws := utils.StartOfWeek(ts, loc)
	for i := 0; i < n; i++ {
		starts = append(starts, ws)
		ws = prevWeekStart(ws, loc)
	}

	out := make([]entity.HistoryWeek, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, entity.HistoryWeek{
			WeekStart: utils.ISODate(starts[i], loc),
			Minutes:   weekTotalMinutes(logs, starts[i], loc),
		})
	}
	return out
}

// Digest renders the one-line weekly notification body.
func Digest(stats WeekStats) string {
	top := stats.TopDomain
	if top == "" {
		top = noDomain
	}
	return fmt.Sprintf("Total: %d min • Top site: %s", stats.TotalMinutes, top)
}
