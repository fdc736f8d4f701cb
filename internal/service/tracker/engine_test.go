package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/service/rules"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory StateRepository for tests.
type memStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{data: map[uuid.UUID]map[string]json.RawMessage{}}
}

func (m *memStore) Get(_ context.Context, userID uuid.UUID, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if v, ok := m.data[userID][k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) Set(_ context.Context, userID uuid.UUID, values map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[userID] == nil {
		m.data[userID] = map[string]json.RawMessage{}
	}
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.data[userID][k] = raw
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, userID uuid.UUID, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data[userID], k)
	}
	return nil
}

func (m *memStore) Users(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, 0, len(m.data))
	for id := range m.data {
		out = append(out, id)
	}
	return out, nil
}

func (m *memStore) raw(t *testing.T, userID uuid.UUID, key string) json.RawMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[userID][key]
}

type memNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *memNotifier) Notify(_ context.Context, _ uuid.UUID, kind, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func newTestEngine(t *testing.T, store *memStore) *Engine {
	t.Helper()
	userID := uuid.Must(uuid.NewV4())
	return NewEngine(userID, store, &memNotifier{}, time.UTC)
}

func TestEngineSeedsDefaults(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)

	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rules.DefaultRules, snap.Rules)
	assert.True(t, snap.TrackingEnabled)
	assert.Empty(t, snap.Logs)
	assert.Equal(t, "minutes", snap.BadgeMode)
	assert.Equal(t, "student", snap.PortfolioPrefs.Alias)

	// Defaults are written back, including a generated salt.
	require.NotNil(t, store.raw(t, eng.UserID(), KeyRules))
	var settings entity.Settings
	require.NoError(t, json.Unmarshal(store.raw(t, eng.UserID(), KeySettings), &settings))
	assert.NotEmpty(t, settings.Salt.PerInstitution)
}

func TestEngineProcessEventPersists(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	clock := time.Now().UnixMilli()
	eng.now = func() int64 { return clock }

	require.NoError(t, eng.ProcessEvent(ctx, entity.TrackerEvent{
		Type: entity.EventTabActivated, TabID: 1, URL: "https://claude.ai/chat", Active: true,
	}))

	var env entity.SessionsEnvelope
	require.NoError(t, json.Unmarshal(store.raw(t, eng.UserID(), KeySessions), &env))
	require.NotNil(t, env.Active)
	assert.Equal(t, "claude.ai", env.Active.Domain)

	clock += 90_000
	require.NoError(t, eng.ProcessEvent(ctx, entity.TrackerEvent{Type: entity.EventTabRemoved, TabID: 1}))

	require.NoError(t, json.Unmarshal(store.raw(t, eng.UserID(), KeySessions), &env))
	assert.Nil(t, env.Active)
	var logs []entity.LogEntry
	require.NoError(t, json.Unmarshal(store.raw(t, eng.UserID(), KeyLogs), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "claude.ai", logs[0].Domain)
	assert.Equal(t, int64(90_000), logs[0].DurationMS())
}

func TestEngineDropsSubSecondSession(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	clock := time.Now().UnixMilli()
	eng.now = func() int64 { return clock }

	require.NoError(t, eng.ProcessEvent(ctx, entity.TrackerEvent{
		Type: entity.EventTabActivated, TabID: 1, URL: "https://claude.ai/chat", Active: true,
	}))
	clock += 500
	require.NoError(t, eng.ProcessEvent(ctx, entity.TrackerEvent{Type: entity.EventTabRemoved, TabID: 1}))

	snap, err := eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Logs)
}

func TestEngineBootCompaction(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	require.NoError(t, store.Set(context.Background(), eng.UserID(), map[string]interface{}{
		KeyLogs: []entity.LogEntry{
			{Start: 0, End: 1000, Domain: "claude.ai"},
			{Start: 1100, End: 2000, Domain: "claude.ai"},
		},
	}))

	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, int64(2000), snap.Logs[0].End)
}

func TestEngineRestoredStaleSessionClosed(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	start := time.Now().UnixMilli() - 3_600_000
	require.NoError(t, store.Set(context.Background(), eng.UserID(), map[string]interface{}{
		KeySessions: entity.SessionsEnvelope{Active: &entity.ActiveSession{
			TabID: 7, Domain: "example.com", Start: start,
		}},
	}))

	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Active)
	// Credited only up to the idle window, not the whole hour.
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, start+IdleTimeoutMS, snap.Logs[0].End)
}

func TestEngineRestoredMatchingSessionKept(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	start := time.Now().UnixMilli() - 30_000
	require.NoError(t, store.Set(context.Background(), eng.UserID(), map[string]interface{}{
		KeySessions: entity.SessionsEnvelope{Active: &entity.ActiveSession{
			TabID: 7, Domain: "claude.ai", Start: start,
		}},
	}))

	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Active)
	assert.Equal(t, start, snap.Active.Start)
}

func TestEngineRuleManagement(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	require.NoError(t, eng.AddRule(ctx, "  Example.COM "))
	require.NoError(t, eng.AddRule(ctx, "example.com")) // duplicate, no-op

	snap, err := eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Rules, "example.com")
	assert.Len(t, snap.Rules, len(rules.DefaultRules)+1)

	require.NoError(t, eng.RemoveRule(ctx, "example.com"))
	snap, err = eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap.Rules, "example.com")

	require.NoError(t, eng.RemoveRule(ctx, "claude.ai"))
	require.NoError(t, eng.ResetRules(ctx))
	snap, err = eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultRules, snap.Rules)
}

func TestEngineAddRuleRejectsEmpty(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	assert.Error(t, eng.AddRule(context.Background(), "   "))
}

func TestEnginePauseAndBadge(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	require.NoError(t, eng.PauseFor(ctx, 15))
	badge, err := eng.Badge(ctx)
	require.NoError(t, err)
	assert.Equal(t, "⏸", badge.Text)
	assert.Equal(t, "#f59e0b", badge.Color)

	require.NoError(t, eng.Resume(ctx))
	badge, err = eng.Badge(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#3b82f6", badge.Color)

	require.NoError(t, eng.SetBadgeMode(ctx, "onoff"))
	badge, err = eng.Badge(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ON", badge.Text)

	require.NoError(t, eng.SetTrackingEnabled(ctx, false))
	badge, err = eng.Badge(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OFF", badge.Text)

	require.NoError(t, eng.SetBadgeMode(ctx, "none"))
	badge, err = eng.Badge(ctx)
	require.NoError(t, err)
	assert.Empty(t, badge.Text)
}

func TestEngineBadgeMinutesToday(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	now := time.Now().UnixMilli()
	require.NoError(t, store.Set(context.Background(), eng.UserID(), map[string]interface{}{
		KeyLogs: []entity.LogEntry{
			{Start: now - 600_000, End: now - 300_000, Domain: "claude.ai"}, // 5 min
		},
	}))

	badge, err := eng.Badge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", badge.Text)
}

func TestEngineLongSessionNudgeOncePerDay(t *testing.T) {
	store := newMemStore()
	notifier := &memNotifier{}
	eng := NewEngine(uuid.Must(uuid.NewV4()), store, notifier, time.UTC)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	// Open a session that started over two hours ago.
	require.NoError(t, store.Set(ctx, eng.UserID(), map[string]interface{}{
		KeySessions: entity.SessionsEnvelope{Active: &entity.ActiveSession{
			TabID: 1, Domain: "claude.ai", Start: now - 125*60_000,
		}},
	}))
	_, err := eng.Snapshot(ctx) // hydrate
	require.NoError(t, err)

	eng.Tick(ctx, now)
	eng.Tick(ctx, now+5_000)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.kinds, 1)
	assert.Equal(t, entity.NotificationLongSession, notifier.kinds[0])
}

func TestEngineResetTodayAndClear(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	yesterday := utils.StartOfDay(now, time.UTC) - 3_600_000
	require.NoError(t, store.Set(ctx, eng.UserID(), map[string]interface{}{
		KeyLogs: []entity.LogEntry{
			{Start: yesterday - 600_000, End: yesterday, Domain: "claude.ai"},
			{Start: now - 600_000, End: now - 60_000, Domain: "chatgpt.com"},
		},
	}))

	require.NoError(t, eng.ResetToday(ctx))
	snap, err := eng.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, "claude.ai", snap.Logs[0].Domain)

	require.NoError(t, eng.ClearData(ctx))
	snap, err = eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Logs)
}

func TestEngineBackupRoundTrip(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, store)
	ctx := context.Background()

	require.NoError(t, eng.AddRule(ctx, "example.com"))
	require.NoError(t, store.Set(ctx, eng.UserID(), map[string]interface{}{
		KeyLogs: []entity.LogEntry{{Start: 1_000, End: 61_000, Domain: "claude.ai"}},
	}))

	export, err := eng.ExportBackup(ctx)
	require.NoError(t, err)
	assert.True(t, export.OK)
	assert.Contains(t, export.Data, KeyRules)
	assert.Contains(t, export.Data, KeyLogs)

	require.NoError(t, eng.ClearData(ctx))
	require.NoError(t, eng.ResetRules(ctx))

	raw, err := json.Marshal(export.Data)
	require.NoError(t, err)
	var payload entity.BackupPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, eng.ImportBackup(ctx, payload))

	snap, err := eng.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Rules, "example.com")
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, "claude.ai", snap.Logs[0].Domain)
	assert.Equal(t, "minutes", snap.BadgeMode)
}
