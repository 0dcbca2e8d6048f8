package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ups_trap_gateway/internal/models"
)

// NotificationSQLite journals email and SMS delivery attempts.
type NotificationSQLite struct {
	db *sql.DB
}

func NewNotificationSQLite(db *sql.DB) *NotificationSQLite { return &NotificationSQLite{db: db} }

const (
	insertNotificationSQL = `INSERT INTO notifications (id, event_id, channel, recipients, status, detail, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	selectNotificationSQL = `SELECT id, event_id, channel, recipients, status, detail, sent_at FROM notifications ORDER BY sent_at DESC`
	pruneNotificationsSQL = `DELETE FROM notifications WHERE id NOT IN (SELECT id FROM notifications ORDER BY sent_at DESC LIMIT ?)`
)

func (r *NotificationSQLite) Record(ctx context.Context, rec models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertNotificationSQL,
		rec.ID,
		rec.EventID,
		rec.Channel,
		string(recipients),
		rec.Status,
		rec.Detail,
		formatTime(rec.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the newest delivery attempts; limit <= 0 returns all.
func (r *NotificationSQLite) List(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	q := selectNotificationSQL
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationRecord
	for rows.Next() {
		var (
			rec        models.NotificationRecord
			recipients string
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Channel, &recipients, &rec.Status, &rec.Detail, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.SentAt = rec.SentAt.UTC()
		if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationSQLite) Prune(ctx context.Context, keep int) (int64, error) {
	return prune(ctx, r.db, pruneNotificationsSQL, keep)
}
