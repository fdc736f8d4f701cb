// internal/service/report/service.go
package report

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/repository"
	"github.com/clarahq/clara-backend/internal/service/redis"
	"github.com/clarahq/clara-backend/internal/service/tracker"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
)

const (
	toolName       = "C.L.A.R.A."
	schemaURL      = "https://json-schema.org/draft/2020-12/schema"
	noDomain       = "—"
	sessionsCap    = 50
	weekCacheTTL   = time.Minute
	weekCachePrefx = "report:week:"
)

type ServiceInterface interface {
	CurrentWeek(ctx context.Context, userID uuid.UUID) (*WeekStats, error)
	WeekAt(ctx context.Context, userID uuid.UUID, ts int64) (*WeekStats, error)
	BuildDigest(ctx context.Context, userID uuid.UUID, weekStart int64) (string, error)
	Portfolio(ctx context.Context, userID uuid.UUID) (*entity.PortfolioExport, error)
	WeeklyPortfolio(ctx context.Context, userID uuid.UUID) (*entity.WeeklyPortfolioExport, error)
	Attachment(ctx context.Context, userID uuid.UUID) (*entity.AttachmentExport, error)
	Analytics(ctx context.Context, userID uuid.UUID) (*entity.AnalyticsExport, error)
	CSV(ctx context.Context, userID uuid.UUID) ([]byte, error)
	FriendlyLabels() map[string]string
}

type Service struct {
	usage   UsageSource
	store   repository.StateRepository
	cache   redis.ServiceInterface
	loc     *time.Location
	version string
}

func NewReportService(usage UsageSource, store repository.StateRepository, cache redis.ServiceInterface, loc *time.Location, version string) *Service {
	if version == "" {
		version = "1.x"
	}
	return &Service{usage: usage, store: store, cache: cache, loc: loc, version: version}
}

// CurrentWeek aggregates the week in progress, cached briefly in redis
// since the popup polls it.
func (s *Service) CurrentWeek(ctx context.Context, userID uuid.UUID) (*WeekStats, error) {
	if s.cache != nil {
		var cached WeekStats
		if err := s.cache.Get(ctx, weekCachePrefx+userID.String(), &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.WeekAt(ctx, userID, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, weekCachePrefx+userID.String(), stats, weekCacheTTL); err != nil {
			log.Printf("report: week cache write failed for %s: %v", userID, err)
		}
	}
	return stats, nil
}

// WeekAt aggregates the week containing ts.
func (s *Service) WeekAt(ctx context.Context, userID uuid.UUID, ts int64) (*WeekStats, error) {
	logs, active, err := s.usage.Usage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	all := effectiveLogs(logs, active, time.Now().UnixMilli())
	stats := ComputeWeek(all, ts, s.loc)
	FillTrends(&stats, all, s.loc)
	return &stats, nil
}

// BuildDigest renders the weekly notification body for the week starting
// at weekStart. Satisfies the tracker manager's digest hook.
func (s *Service) BuildDigest(ctx context.Context, userID uuid.UUID, weekStart int64) (string, error) {
	stats, err := s.WeekAt(ctx, userID, weekStart)
	if err != nil {
		return "", err
	}
	return Digest(*stats), nil
}

func (s *Service) prefs(ctx context.Context, userID uuid.UUID) (entity.PortfolioPrefs, entity.Settings, error) {
	prefs := entity.DefaultPortfolioPrefs()
	settings := entity.DefaultSettings()

	stored, err := s.store.Get(ctx, userID, tracker.KeyPortfolioPrefs, tracker.KeySettings)
	if err != nil {
		return prefs, settings, fmt.Errorf("failed to load export prefs: %w", err)
	}
	if raw, ok := stored[tracker.KeyPortfolioPrefs]; ok {
		if err := json.Unmarshal(raw, &prefs); err != nil {
			log.Printf("report: malformed portfolioPrefs for %s: %v", userID, err)
		}
	}
	if raw, ok := stored[tracker.KeySettings]; ok {
		if err := json.Unmarshal(raw, &settings); err != nil {
			log.Printf("report: malformed settings for %s: %v", userID, err)
		}
	}
	if prefs.Alias == "" {
		prefs.Alias = "student"
	}
	return prefs, settings, nil
}

var dayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Portfolio builds the single-week portfolio snapshot.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*entity.PortfolioExport, error) {
	stats, err := s.CurrentWeek(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, _, err := s.prefs(ctx, userID)
	if err != nil {
		return nil, err
	}

	breakdown := make([]entity.DayMinutes, 7)
	for i, m := range stats.PerDayMinutes {
		breakdown[i] = entity.DayMinutes{Day: dayLabels[i], Minutes: m}
	}

	return &entity.PortfolioExport{
		Schema:              schemaURL,
		Version:             "0.1",
		Alias:               prefs.Alias,
		Consent:             prefs.Consent,
		WeekStart:           utils.ISODate(stats.WeekStart, s.loc),
		WeekEnd:             utils.ISODate(stats.WeekEnd, s.loc),
		Totals:              entity.PortfolioTotals{Minutes: stats.TotalMinutes, ByDomain: stats.ByDomain},
		Score:               stats.Score,
		MostActiveDay:       stats.MostActiveDay,
		ChangeVsPrevWeekPct: stats.ChangeVsPrevWeekPct,
		StreakWeeks:         stats.StreakWeeks,
		Badge:               stats.Badge,
		Provenance: entity.Provenance{
			CreatedAt:        utils.ISOTime(time.Now().UnixMilli()),
			DeviceLocalOnly:  false,
			ExtensionVersion: s.version,
		},
		WeeklyBreakdown: breakdown,
	}, nil
}

func (s *Service) integrity(logs []entity.LogEntry, weekStart, weekEnd int64) entity.ExportIntegrity {
	winStart, winEnd := weekStart, weekEnd
	for _, l := range logs {
		if l.Start < winStart {
			winStart = l.Start
		}
		if l.End > winEnd {
			winEnd = l.End
		}
	}
	return entity.ExportIntegrity{
		LogsCount:      len(logs),
		WindowStartISO: utils.ISOTime(winStart),
		WindowEndISO:   utils.ISOTime(winEnd),
	}
}

// WeeklyPortfolio extends the portfolio with a four-week history and an
// integrity block over the whole log window.
func (s *Service) WeeklyPortfolio(ctx context.Context, userID uuid.UUID) (*entity.WeeklyPortfolioExport, error) {
	base, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, _, err := s.usage.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	return &entity.WeeklyPortfolioExport{
		PortfolioExport: *base,
		History:         entity.ExportHistory{Last4Weeks: History(logs, now, 4, s.loc)},
		Integrity:       s.integrity(logs, utils.StartOfWeek(now, s.loc), utils.EndOfWeek(now, s.loc)),
	}, nil
}

// Attachment builds the minimal per-week record meant to travel with a
// piece of submitted work.
func (s *Service) Attachment(ctx context.Context, userID uuid.UUID) (*entity.AttachmentExport, error) {
	stats, err := s.CurrentWeek(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, settings, err := s.prefs(ctx, userID)
	if err != nil {
		return nil, err
	}

	week := entity.AttachmentWeek{
		StartISO:     utils.ISODate(stats.WeekStart, s.loc),
		EndISO:       utils.ISODate(stats.WeekEnd, s.loc),
		TotalMinutes: stats.TotalMinutes,
		AIScore:      stats.Score,
	}
	if settings.Attachment.IncludeTopDomain {
		week.TopDomain = stats.TopDomain
		if week.TopDomain == "" {
			week.TopDomain = noDomain
		}
	}

	return &entity.AttachmentExport{
		Version:     "0.1",
		Subject:     entity.ExportSubject{Alias: prefs.Alias, Consent: prefs.Consent},
		Week:        week,
		GeneratedAt: utils.ISOTime(time.Now().UnixMilli()),
		ExportType:  "attachment_v01",
	}, nil
}

// Analytics builds the richest export: weekly core, history, integrity,
// an optional sessions sample and optional pseudonymisation.
func (s *Service) Analytics(ctx context.Context, userID uuid.UUID) (*entity.AnalyticsExport, error) {
	weekly, err := s.WeeklyPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, settings, err := s.prefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, _, err := s.usage.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}

	perDay := make([]int, 7)
	for i, d := range weekly.WeeklyBreakdown {
		perDay[i] = d.Minutes
	}
	top := noDomain
	if len(weekly.Totals.ByDomain) > 0 {
		top = weekly.Totals.ByDomain[0].Domain
	}

	week := entity.AnalyticsWeek{
		StartISO:            weekly.WeekStart,
		EndISO:              weekly.WeekEnd,
		TotalMinutes:        weekly.Totals.Minutes,
		PerDayMinutes:       perDay,
		TopDomain:           top,
		ChangeVsPrevWeekPct: weekly.ChangeVsPrevWeekPct,
		StreakWeeks:         weekly.StreakWeeks,
		AIScore:             weekly.Score,
		Badge:               weekly.Badge,
	}
	if settings.Analytics.IncludeDomains {
		week.PerDomainMinutes = weekly.Totals.ByDomain
	}

	out := &entity.AnalyticsExport{
		SchemaVersion: "0.1",
		ExportType:    "analytics_v01",
		GeneratedAt:   utils.ISOTime(time.Now().UnixMilli()),
		Tool:          entity.ExportTool{Name: toolName, Version: s.version},
		Subject:       entity.ExportSubject{Alias: prefs.Alias, Consent: prefs.Consent},
		Week:          week,
		History:       weekly.History,
		Integrity:     weekly.Integrity,
		ContextTag:    settings.Analytics.ContextTag,
		Validator:     settings.Analytics.Validator,
	}

	if settings.Analytics.IncludeSessions {
		out.SessionsSample = sessionsSample(logs)
	}
	if settings.Analytics.HashAlias {
		salt := settings.Salt.PerInstitution
		if salt == "" {
			salt = "ext"
		}
		sum := sha256.Sum256([]byte(salt + "::" + prefs.Alias))
		out.Pseudonymisation = &entity.Pseudonymisation{UserHash: fmt.Sprintf("%x", sum)}
	}
	return out, nil
}

// sessionsSample returns up to sessionsCap closed sessions, newest first.
func sessionsSample(logs []entity.LogEntry) []entity.SessionSample {
	sorted := make([]entity.LogEntry, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })
	if len(sorted) > sessionsCap {
		sorted = sorted[:sessionsCap]
	}

	out := make([]entity.SessionSample, 0, len(sorted))
	for _, l := range sorted {
		dur := l.DurationMS() / 1000
		if dur < 0 {
			dur = 0
		}
		out = append(out, entity.SessionSample{
			StartISO:        utils.ISOTime(l.Start),
			EndISO:          utils.ISOTime(l.End),
			Domain:          l.Domain,
			DurationSeconds: dur,
		})
	}
	return out
}
