package community

import (
	"context"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

func (db *DB) initMeetings(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS meetings (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

// InsertMeeting persists a new meeting.
func (db *DB) InsertMeeting(ctx context.Context, m *community.Meeting) error {
	query := `
		INSERT INTO meetings (title, description, scheduled_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := db.QueryRow(ctx, query, m.Title, m.Description, m.ScheduledAt).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// GetMeeting returns one meeting by id.
func (db *DB) GetMeeting(ctx context.Context, id int64) (*community.Meeting, error) {
	query := `
		SELECT id, title, description, scheduled_at, started_at, ended_at, created_at, updated_at
		FROM meetings WHERE id = $1
	`
	var m community.Meeting
	err := db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.Description, &m.ScheduledAt,
		&m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("meeting #%d not found", id)
		}
		return nil, fmt.Errorf("get meeting #%d: %w", id, err)
	}
	return &m, nil
}

// ListMeetings returns meetings newest first.
func (db *DB) ListMeetings(ctx context.Context) ([]community.Meeting, error) {
	rows, err := db.Query(ctx, `
		SELECT id, title, description, scheduled_at, started_at, ended_at, created_at, updated_at
		FROM meetings ORDER BY scheduled_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []community.Meeting
	for rows.Next() {
		var m community.Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ScheduledAt,
			&m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StartMeeting stamps started_at with server UTC time.
func (db *DB) StartMeeting(ctx context.Context, id int64) error {
	return db.stampMeeting(ctx, id, "started_at")
}

// EndMeeting stamps ended_at with server UTC time.
func (db *DB) EndMeeting(ctx context.Context, id int64) error {
	return db.stampMeeting(ctx, id, "ended_at")
}

func (db *DB) stampMeeting(ctx context.Context, id int64, column string) error {
	query := fmt.Sprintf(`UPDATE meetings SET %s = $2, updated_at = $2 WHERE id = $1`, column)
	tag, err := db.Pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update meeting #%d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting #%d not found", id)
	}
	return nil
}
