package community

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

func (db *DB) initAttendees(ctx context.Context) error {
	if err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attendees (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			name TEXT NOT NULL,
			document TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			access_code TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return err
	}

	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attendee_properties (
			attendee_id BIGINT NOT NULL REFERENCES attendees(id) ON DELETE CASCADE,
			property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			coefficient NUMERIC(5,2) NOT NULL,
			proxy_document TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (attendee_id, property_id)
		)
	`)
}

// InsertAttendee registers an attendee together with the properties they
// represent, in one transaction. An attendee must represent at least one
// property; callers validate that before reaching the store, and the insert
// refuses an empty set as well.
func (db *DB) InsertAttendee(ctx context.Context, a *community.Attendee) error {
	if len(a.Properties) == 0 {
		return fmt.Errorf("attendee must represent at least one property")
	}

	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO attendees (name, document, phone, access_code)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`, a.Name, a.Document, a.Phone, a.AccessCode).
			Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("access code %s already in use", a.AccessCode)
			}
			return fmt.Errorf("insert attendee: %w", err)
		}

		for i := range a.Properties {
			ap := &a.Properties[i]
			ap.AttendeeID = a.ID
			_, err := tx.Exec(ctx, `
				INSERT INTO attendee_properties (attendee_id, property_id, coefficient, proxy_document)
				VALUES ($1, $2, $3, $4)
			`, ap.AttendeeID, ap.PropertyID, ap.Coefficient, ap.ProxyDocument)
			if err != nil {
				return fmt.Errorf("link attendee #%d to property #%d: %w", a.ID, ap.PropertyID, err)
			}
		}
		return nil
	})
}

// GetAttendee returns one attendee with their represented properties.
func (db *DB) GetAttendee(ctx context.Context, id int64) (*community.Attendee, error) {
	var a community.Attendee
	err := db.QueryRow(ctx, `
		SELECT id, name, document, phone, access_code, created_at, updated_at
		FROM attendees WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.Document, &a.Phone, &a.AccessCode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("attendee #%d not found", id)
		}
		return nil, fmt.Errorf("get attendee #%d: %w", id, err)
	}

	rows, err := db.Query(ctx, `
		SELECT attendee_id, property_id, coefficient, proxy_document
		FROM attendee_properties WHERE attendee_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("attendee #%d properties: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ap community.AttendeeProperty
		if err := rows.Scan(&ap.AttendeeID, &ap.PropertyID, &ap.Coefficient, &ap.ProxyDocument); err != nil {
			return nil, fmt.Errorf("scan attendee property: %w", err)
		}
		a.Properties = append(a.Properties, ap)
	}
	return &a, rows.Err()
}

// GetAttendeeByAccessCode resolves an attendee from the code handed out at
// registration (used by the inbound messaging channel).
func (db *DB) GetAttendeeByAccessCode(ctx context.Context, code string) (*community.Attendee, error) {
	var id int64
	err := db.QueryRow(ctx, `SELECT id FROM attendees WHERE access_code = $1`, code).Scan(&id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("attendee with access code %s not found", code)
		}
		return nil, fmt.Errorf("get attendee by access code: %w", err)
	}
	return db.GetAttendee(ctx, id)
}

// ListAttendees returns all attendees ordered by name.
func (db *DB) ListAttendees(ctx context.Context) ([]community.Attendee, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, document, phone, access_code, created_at, updated_at
		FROM attendees ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var out []community.Attendee
	for rows.Next() {
		var a community.Attendee
		if err := rows.Scan(&a.ID, &a.Name, &a.Document, &a.Phone, &a.AccessCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAttendee removes an attendee and their property links. Votes already
// cast through this attendee's properties are untouched; vote rows reference
// properties, not attendees.
func (db *DB) DeleteAttendee(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendee #%d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendee #%d not found", id)
	}
	return nil
}
