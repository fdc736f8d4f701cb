// internal/service/report/service_test.go
package report

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsage struct {
	logs   []entity.LogEntry
	active *entity.ActiveSession
}

func (f *fakeUsage) Usage(ctx context.Context, userID uuid.UUID) ([]entity.LogEntry, *entity.ActiveSession, error) {
	return f.logs, f.active, nil
}

type fakeStore struct {
	data map[string]json.RawMessage
}

func (f *fakeStore) Get(ctx context.Context, userID uuid.UUID, keys ...string) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeStore) Set(ctx context.Context, userID uuid.UUID, values map[string]interface{}) error {
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		f.data[k] = raw
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, userID uuid.UUID, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) Users(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func newTestService(t *testing.T, logs []entity.LogEntry, stored map[string]interface{}) (*Service, uuid.UUID) {
	t.Helper()
	store := &fakeStore{data: map[string]json.RawMessage{}}
	for k, v := range stored {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		store.data[k] = raw
	}
	svc := NewReportService(&fakeUsage{logs: logs}, store, nil, time.UTC, "2.1.0")
	return svc, uuid.Must(uuid.NewV4())
}

func thisWeekEntry(t *testing.T, startMin, durMin int, domain string) entity.LogEntry {
	t.Helper()
	weekStart := utils.StartOfWeek(time.Now().UnixMilli(), time.UTC)
	start := weekStart + int64(startMin)*60_000
	return entity.LogEntry{Start: start, End: start + int64(durMin)*60_000, Domain: domain}
}

func TestPortfolioExportShape(t *testing.T) {
	logs := []entity.LogEntry{
		thisWeekEntry(t, 0, 90, "chatgpt.com"),
		thisWeekEntry(t, 200, 30, "claude.ai"),
	}
	svc, userID := newTestService(t, logs, map[string]interface{}{
		"portfolioPrefs": entity.PortfolioPrefs{Alias: "anna", Consent: true},
	})

	export, err := svc.Portfolio(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", export.Schema)
	assert.Equal(t, "0.1", export.Version)
	assert.Equal(t, "anna", export.Alias)
	assert.True(t, export.Consent)
	assert.Equal(t, 120, export.Totals.Minutes)
	assert.Equal(t, "chatgpt.com", export.Totals.ByDomain[0].Domain)
	assert.Len(t, export.WeeklyBreakdown, 7)
	assert.Equal(t, "Mon", export.WeeklyBreakdown[0].Day)
	assert.Equal(t, "2.1.0", export.Provenance.ExtensionVersion)
	assert.False(t, export.Provenance.DeviceLocalOnly)
}

func TestPortfolioDefaultsAlias(t *testing.T) {
	svc, userID := newTestService(t, nil, nil)

	export, err := svc.Portfolio(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "student", export.Alias)
}

func TestWeeklyPortfolioIntegrityWindow(t *testing.T) {
	old := entity.LogEntry{Start: 1_600_000_000_000, End: 1_600_000_300_000, Domain: "poe.com"}
	logs := []entity.LogEntry{old, thisWeekEntry(t, 10, 20, "claude.ai")}
	svc, userID := newTestService(t, logs, nil)

	export, err := svc.WeeklyPortfolio(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 2, export.Integrity.LogsCount)
	assert.Equal(t, utils.ISOTime(old.Start), export.Integrity.WindowStartISO)
	assert.Len(t, export.History.Last4Weeks, 4)
	// oldest first
	first := export.History.Last4Weeks[0].WeekStart
	last := export.History.Last4Weeks[3].WeekStart
	assert.Less(t, first, last)
}

func TestAttachmentTopDomainGate(t *testing.T) {
	logs := []entity.LogEntry{thisWeekEntry(t, 0, 45, "gemini.google.com")}

	svc, userID := newTestService(t, logs, nil)
	export, err := svc.Attachment(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, export.Week.TopDomain, "top domain withheld unless opted in")

	settings := entity.DefaultSettings()
	settings.Attachment.IncludeTopDomain = true
	svc2, userID2 := newTestService(t, logs, map[string]interface{}{"settings": settings})
	export2, err := svc2.Attachment(context.Background(), userID2)
	require.NoError(t, err)
	assert.Equal(t, "gemini.google.com", export2.Week.TopDomain)
	assert.Equal(t, "attachment_v01", export2.ExportType)
	assert.Equal(t, 45, export2.Week.TotalMinutes)
}

func TestAnalyticsPrivacyToggles(t *testing.T) {
	logs := []entity.LogEntry{thisWeekEntry(t, 0, 60, "chatgpt.com")}

	settings := entity.DefaultSettings()
	settings.Analytics.IncludeDomains = false
	settings.Analytics.IncludeSessions = false
	settings.Analytics.HashAlias = true
	settings.Analytics.ContextTag = "cs101"
	settings.Salt.PerInstitution = "salt-a"

	svc, userID := newTestService(t, logs, map[string]interface{}{
		"settings":       settings,
		"portfolioPrefs": entity.PortfolioPrefs{Alias: "anna", Consent: true},
	})

	export, err := svc.Analytics(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, "C.L.A.R.A.", export.Tool.Name)
	assert.Empty(t, export.Week.PerDomainMinutes)
	assert.Empty(t, export.SessionsSample)
	assert.Equal(t, "cs101", export.ContextTag)

	sum := sha256.Sum256([]byte("salt-a::anna"))
	require.NotNil(t, export.Pseudonymisation)
	assert.Equal(t, fmt.Sprintf("%x", sum), export.Pseudonymisation.UserHash)
}

func TestAnalyticsDefaultsIncludeEverything(t *testing.T) {
	logs := []entity.LogEntry{thisWeekEntry(t, 0, 60, "chatgpt.com")}
	svc, userID := newTestService(t, logs, nil)

	export, err := svc.Analytics(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, "chatgpt.com", export.Week.PerDomainMinutes[0].Domain)
	assert.Len(t, export.SessionsSample, 1)
	assert.Nil(t, export.Pseudonymisation)
	assert.Equal(t, "chatgpt.com", export.Week.TopDomain)
}

func TestSessionsSampleCapAndOrder(t *testing.T) {
	logs := make([]entity.LogEntry, 60)
	for i := range logs {
		start := int64(1_700_000_000_000 + i*600_000)
		logs[i] = entity.LogEntry{Start: start, End: start + 300_000, Domain: "claude.ai"}
	}

	sample := sessionsSample(logs)
	require.Len(t, sample, 50)
	// newest first
	assert.Equal(t, utils.ISOTime(logs[59].Start), sample[0].StartISO)
	assert.Equal(t, int64(300), sample[0].DurationSeconds)
}

func TestCSVExport(t *testing.T) {
	logs := []entity.LogEntry{
		{Start: 1_700_000_000_000, End: 1_700_000_090_500, Domain: "chatgpt.com"},
	}
	svc, userID := newTestService(t, logs, nil)

	data, err := svc.CSV(context.Background(), userID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Start (ISO),End (ISO),Site,Duration (sec)", lines[0])
	assert.Equal(t, "1700000000000,1700000090500,chatgpt.com,91", lines[1])
}

func TestFriendlyLabelsCopy(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	labels := svc.FriendlyLabels()
	assert.Equal(t, "Site", labels["sessions_sample[].domain"])

	labels["sessions_sample[].domain"] = "mutated"
	assert.Equal(t, "Site", svc.FriendlyLabels()["sessions_sample[].domain"])
}
