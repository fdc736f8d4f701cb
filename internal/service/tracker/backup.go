// internal/service/tracker/backup.go
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/pkg/utils"
)

// ExportBackup returns the raw stored values for every backup key, as a
// restorable snapshot.
func (e *Engine) ExportBackup(ctx context.Context) (*entity.BackupExportResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.hydrate(ctx); err != nil {
		return nil, err
	}

	stored, err := e.store.Get(ctx, e.userID, BackupKeys...)
	if err != nil {
		return nil, fmt.Errorf("failed to export backup: %w", err)
	}

	data := make(map[string]interface{}, len(stored))
	for k, raw := range stored {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode stored %q: %w", k, err)
		}
		data[k] = v
	}

	return &entity.BackupExportResponse{
		OK:         true,
		Data:       data,
		ExportedAt: utils.ISOTime(time.Now().UnixMilli()),
	}, nil
}

// ImportBackup restores a snapshot. Only fields of the expected type are
// written; missing pause/theme/badge fields fall back to their defaults,
// matching how a fresh install reads them. The cached state reloads on
// the next operation.
func (e *Engine) ImportBackup(ctx context.Context, b entity.BackupPayload) error {
	values := map[string]interface{}{}

	if b.Rules != nil {
		values[KeyRules] = b.Rules
	}
	if b.TrackingEnabled != nil {
		values[KeyTrackingEnabled] = *b.TrackingEnabled
	}
	if b.Logs != nil {
		values[KeyLogs] = Compact(b.Logs)
	}
	if b.Sessions != nil {
		values[KeySessions] = b.Sessions
	}

	if b.PausedUntil != nil {
		values[KeyPausedUntil] = *b.PausedUntil
	} else {
		values[KeyPausedUntil] = 0
	}
	theme := b.ThemePref
	if theme == "" {
		theme = "system"
	}
	values[KeyThemePref] = theme
	mode := b.BadgeMode
	if mode == "" {
		mode = "minutes"
	}
	values[KeyBadgeMode] = mode

	if b.UIFlags != nil {
		values[KeyUIFlags] = b.UIFlags
	}

	e.mu.Lock()
	err := e.store.Set(ctx, e.userID, values)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to import backup: %w", err)
	}

	e.Refresh()
	return nil
}
