package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ups_trap_gateway/internal/models"
)

// EventSQLite is the trap journal.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const (
	insertTrapEventSQL = `INSERT INTO trap_events (id, received_at, source, device, code, name, severity, role, description, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectTrapEventSQL = `SELECT id, received_at, source, device, code, name, severity, role, description, payload FROM trap_events`
	pruneTrapEventsSQL = `DELETE FROM trap_events WHERE id NOT IN (SELECT id FROM trap_events ORDER BY received_at DESC LIMIT ?)`
)

// Append inserts e. A missing EventID or ReceivedAt is filled in.
func (r *EventSQLite) Append(ctx context.Context, e models.TrapEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	var payload *string
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", e.EventID, err)
		}
		s := string(b)
		payload = &s
	}

	_, err := r.db.ExecContext(ctx, insertTrapEventSQL,
		e.EventID,
		formatTime(e.ReceivedAt),
		e.Source,
		e.Device,
		e.Code,
		e.Name,
		string(e.Severity),
		string(e.Role),
		e.Description,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert trap event %s: %w", e.EventID, err)
	}
	return nil
}

// List returns events matching f, newest first.
func (r *EventSQLite) List(ctx context.Context, f EventFilter) ([]models.TrapEvent, error) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "received_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "received_at <= ?")
		args = append(args, formatTime(f.To))
	}
	if sev := strings.ToLower(strings.TrimSpace(f.Severity)); sev != "" {
		conds = append(conds, "severity = ?")
		args = append(args, sev)
	}
	if role := strings.ToLower(strings.TrimSpace(f.Role)); role != "" {
		conds = append(conds, "role = ?")
		args = append(args, role)
	}
	if src := strings.TrimSpace(f.Source); src != "" {
		conds = append(conds, "source = ?")
		args = append(args, src)
	}

	q := selectTrapEventSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY received_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trap events: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrapEvent, 0, 64)
	for rows.Next() {
		var (
			ev      models.TrapEvent
			sev     string
			role    string
			payload sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.ReceivedAt, &ev.Source, &ev.Device, &ev.Code, &ev.Name,
			&sev, &role, &ev.Description, &payload); err != nil {
			return nil, fmt.Errorf("scan trap event: %w", err)
		}
		ev.ReceivedAt = ev.ReceivedAt.UTC()
		ev.Severity = models.Severity(sev)
		ev.Role = models.Role(role)
		if payload.Valid && payload.String != "" {
			// a malformed payload is dropped rather than failing the listing
			_ = json.Unmarshal([]byte(payload.String), &ev.Payload)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trap events: %w", err)
	}
	return out, nil
}

// Prune keeps the newest keep events and returns how many were removed.
func (r *EventSQLite) Prune(ctx context.Context, keep int) (int64, error) {
	return prune(ctx, r.db, pruneTrapEventsSQL, keep)
}

func prune(ctx context.Context, db *sql.DB, query string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}
