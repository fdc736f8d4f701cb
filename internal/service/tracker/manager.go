// internal/service/tracker/manager.go
package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/repository"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gofrs/uuid"
)

const tickInterval = 5 * time.Second

// Marker records once-only events, backed by redis SETNX. Mark returns
// false when the key was already set, so concurrent instances deliver a
// digest at most once.
type Marker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DigestBuilder produces the weekly digest line for a user, e.g.
// "Total: 245 min • Top site: chatgpt.com".
type DigestBuilder interface {
	BuildDigest(ctx context.Context, userID uuid.UUID, weekStart int64) (string, error)
}

// Manager holds one Engine per user and drives the time-based behavior:
// the idle/nudge tick and the weekly digest.
type Manager struct {
	mu       sync.Mutex
	engines  map[uuid.UUID]*Engine
	store    repository.StateRepository
	notifier Notifier
	marker   Marker
	digest   DigestBuilder
	loc      *time.Location

	digestWeekday time.Weekday
	digestHour    int
}

func NewManager(store repository.StateRepository, notifier Notifier, marker Marker, digest DigestBuilder, loc *time.Location, digestWeekday time.Weekday, digestHour int) *Manager {
	return &Manager{
		engines:       make(map[uuid.UUID]*Engine),
		store:         store,
		notifier:      notifier,
		marker:        marker,
		digest:        digest,
		loc:           loc,
		digestWeekday: digestWeekday,
		digestHour:    digestHour,
	}
}

// SetDigestBuilder wires the report layer in after construction. The
// report service reads usage back through the manager, so it cannot
// exist before the manager does.
func (m *Manager) SetDigestBuilder(d DigestBuilder) {
	m.digest = d
}

// Engine returns the user's engine, creating it on first use.
func (m *Manager) Engine(userID uuid.UUID) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	eng, ok := m.engines[userID]
	if !ok {
		eng = NewEngine(userID, m.store, m.notifier, m.loc)
		m.engines[userID] = eng
	}
	return eng
}

// Usage proxies to the user's engine, for the report layer.
func (m *Manager) Usage(ctx context.Context, userID uuid.UUID) ([]entity.LogEntry, *entity.ActiveSession, error) {
	return m.Engine(userID).Usage(ctx)
}

func (m *Manager) loaded() []*Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		out = append(out, e)
	}
	return out
}

// Run blocks until ctx is cancelled, driving the tick and digest loops.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	digestTimer := time.NewTimer(m.untilNextDigest())
	defer digestTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			for _, eng := range m.loaded() {
				eng.Tick(ctx, now)
			}
		case <-digestTimer.C:
			m.runWeeklyDigest(ctx)
			digestTimer.Reset(m.untilNextDigest())
		}
	}
}

func (m *Manager) untilNextDigest() time.Duration {
	now := time.Now()
	return utils.NextWeeklyDigest(now, m.digestWeekday, m.digestHour, m.loc).Sub(now)
}

// runWeeklyDigest sends the previous week's summary to every known user
// that opted in. The redis marker dedupes across restarts and replicas.
func (m *Manager) runWeeklyDigest(ctx context.Context) {
	if m.digest == nil {
		return
	}

	users, err := m.store.Users(ctx)
	if err != nil {
		log.Printf("tracker: weekly digest user scan failed: %v", err)
		return
	}

	now := time.Now().UnixMilli()
	weekStart := utils.StartOfWeek(now-7*24*3600*1000, m.loc)

	for _, userID := range users {
		eng := m.Engine(userID)
		prefs, err := eng.NotifyPrefs(ctx)
		if err != nil {
			log.Printf("tracker: digest prefs load failed for %s: %v", userID, err)
			continue
		}
		if !prefs.NotifyWeekly {
			continue
		}

		key := fmt.Sprintf("digest:%s:%d", userID, weekStart)
		if m.marker != nil {
			fresh, err := m.marker.Mark(ctx, key, 14*24*time.Hour)
			if err != nil {
				log.Printf("tracker: digest marker failed for %s: %v", userID, err)
				continue
			}
			if !fresh {
				continue
			}
		}

		msg, err := m.digest.BuildDigest(ctx, userID, weekStart)
		if err != nil {
			log.Printf("tracker: digest build failed for %s: %v", userID, err)
			continue
		}
		if err := m.notifier.Notify(ctx, userID, entity.NotificationWeekly, "Your weekly AI usage", msg); err != nil {
			log.Printf("tracker: digest delivery failed for %s: %v", userID, err)
		}
	}
}
