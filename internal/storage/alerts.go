package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Alert is a stored spending warning. Kind identifies the check that raised
// it so repeated runs can avoid duplicates.
type Alert struct {
	ID        int64
	UserID    int64
	Kind      string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// CreateAlert stores a new unread alert.
func (r *SQLiteRepository) CreateAlert(ctx context.Context, userID int64, kind, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO alerts (user_id, kind, message) VALUES (?, ?, ?)",
		userID, kind, message)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("alert id: %w", err)
	}

	slog.InfoContext(ctx, "Alert raised", "id", id, "kind", kind)
	return id, nil
}

// HasAlert reports whether an unread alert of this kind already exists, so
// periodic checks do not pile up duplicates.
func (r *SQLiteRepository) HasAlert(ctx context.Context, userID int64, kind string) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND kind = ? AND is_read = 0",
		userID, kind).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count alerts: %w", err)
	}
	return n > 0, nil
}

// ListUnreadAlerts returns the user's unread alerts, newest first.
func (r *SQLiteRepository) ListUnreadAlerts(ctx context.Context, userID int64) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, message, is_read, created_at
		FROM alerts
		WHERE user_id = ? AND is_read = 0
		ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Message, &a.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// MarkAlertRead dismisses an alert.
func (r *SQLiteRepository) MarkAlertRead(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE alerts SET is_read = 1 WHERE id = ? AND user_id = ?",
		id, userID)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}
