// internal/repository/state_repository.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

// StateRepository is the per-user key-value store behind the tracker,
// mirroring the extension's chrome.storage.local surface: named JSON
// values fetched and written by key.
type StateRepository interface {
	Get(ctx context.Context, userID uuid.UUID, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, userID uuid.UUID, values map[string]interface{}) error
	Delete(ctx context.Context, userID uuid.UUID, keys ...string) error
	Users(ctx context.Context) ([]uuid.UUID, error)
}

type stateRepository struct {
	db *sqlx.DB
}

func NewStateRepository(db *sqlx.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) Get(ctx context.Context, userID uuid.UUID, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		`SELECT key, value FROM tracker_states WHERE user_id = ? AND key IN (?)`,
		userID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build state query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

func (r *stateRepository) Set(ctx context.Context, userID uuid.UUID, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tracker_states (user_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	now := time.Now()
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal state value %q: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, query, userID, key, raw, now); err != nil {
			return fmt.Errorf("failed to write state key %q: %w", key, err)
		}
	}

	return tx.Commit()
}

func (r *stateRepository) Delete(ctx context.Context, userID uuid.UUID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		`DELETE FROM tracker_states WHERE user_id = ? AND key IN (?)`,
		userID, keys)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	query = r.db.Rebind(query)

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *stateRepository) Users(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT user_id FROM tracker_states`)
	if err != nil {
		return nil, fmt.Errorf("failed to list state users: %w", err)
	}
	return ids, nil
}
