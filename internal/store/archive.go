package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/nerdson/internal/hooks"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Entry is one archived lifecycle event.
type Entry struct {
	ID    string         `json:"id"`
	Event string         `json:"event"`
	User  string         `json:"user,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	At    time.Time      `json:"at"`
}

// Archive records hook events for later inspection by operators.
type Archive struct {
	db *DB
}

// NewArchive creates an archive on db.
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

// Attach subscribes the archive to every hook event.
func (a *Archive) Attach(m *hooks.Manager) {
	m.OnAll("archive", func(ctx context.Context, p hooks.Payload) error {
		return a.Record(ctx, p)
	})
}

// Record stores one hook payload. The "user" and "body" data fields are kept
// in their own columns; the whole data map is stored as JSON.
func (a *Archive) Record(ctx context.Context, p hooks.Payload) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	user, _ := p.Data["user"].(string)
	body, _ := p.Data["body"].(string)

	var data sql.NullString
	if len(p.Data) > 0 {
		raw, err := json.Marshal(p.Data)
		if err != nil {
			return fmt.Errorf("encoding event data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := a.db.sql.ExecContext(ctx,
		`INSERT INTO events (id, event, user_id, body, data, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.Event, user, body, data, p.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", p.Event, err)
	}
	return nil
}

// Filter narrows Recent. Zero fields match everything; Limit 0 means 50.
type Filter struct {
	User  string
	Event string
	Since time.Time
	Limit int
}

// Recent returns the newest matching entries, newest first.
func (a *Archive) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := `SELECT id, event, user_id, body, data, created_at FROM events WHERE 1=1`
	var args []any
	if f.User != "" {
		query += ` AND user_id = ?`
		args = append(args, f.User)
	}
	if f.Event != "" {
		query += ` AND event = ?`
		args = append(args, f.Event)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := a.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var data sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Event, &e.User, &e.Body, &data, &createdAt); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(timeLayout, createdAt)
		if data.Valid {
			_ = json.Unmarshal([]byte(data.String), &e.Data)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of archived events.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
