package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Load implements categories.Backend.
func (r *SQLiteRepository) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load key %s: %w", key, err)
	}
	return value, true, nil
}

// Store implements categories.Backend. An existing value under the key is
// replaced outright; the last writer wins.
func (r *SQLiteRepository) Store(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("store key %s: %w", key, err)
	}
	return nil
}
