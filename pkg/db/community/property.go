package community

import (
	"context"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

func (db *DB) initProperties(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS properties (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			nomenclature TEXT NOT NULL UNIQUE,
			coefficient NUMERIC(5,2) NOT NULL CHECK (coefficient >= 0 AND coefficient <= 100),
			kind TEXT NOT NULL DEFAULT 'apartment',
			owner_document TEXT NOT NULL DEFAULT '',
			owner_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

const propertyColumns = `id, nomenclature, coefficient, kind, owner_document, owner_name, phone, email, active, created_at, updated_at`

func scanProperty(row interface{ Scan(dest ...any) error }, p *community.Property) error {
	return row.Scan(&p.ID, &p.Nomenclature, &p.Coefficient, &p.Kind,
		&p.OwnerDocument, &p.OwnerName, &p.Phone, &p.Email,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
}

// InsertProperty persists a new property.
func (db *DB) InsertProperty(ctx context.Context, p *community.Property) error {
	query := `
		INSERT INTO properties (nomenclature, coefficient, kind, owner_document, owner_name, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := db.QueryRow(ctx, query,
		p.Nomenclature, p.Coefficient, p.Kind, p.OwnerDocument,
		p.OwnerName, p.Phone, p.Email, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("property %s already exists", p.Nomenclature)
		}
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// GetProperty returns one property by id.
func (db *DB) GetProperty(ctx context.Context, id int64) (*community.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE id = $1`, propertyColumns)

	var p community.Property
	if err := scanProperty(db.QueryRow(ctx, query, id), &p); err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("property #%d not found", id)
		}
		return nil, fmt.Errorf("get property #%d: %w", id, err)
	}
	return &p, nil
}

// ListProperties returns properties ordered by nomenclature. When activeOnly is
// set, inactive properties are excluded.
func (db *DB) ListProperties(ctx context.Context, activeOnly bool) ([]community.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties`, propertyColumns)
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY nomenclature`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var out []community.Property
	for rows.Next() {
		var p community.Property
		if err := scanProperty(rows, &p); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProperty updates the mutable fields of a property.
func (db *DB) UpdateProperty(ctx context.Context, p *community.Property) error {
	query := `
		UPDATE properties
		SET nomenclature = $2, coefficient = $3, kind = $4, owner_document = $5,
		    owner_name = $6, phone = $7, email = $8, active = $9, updated_at = $10
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query,
		p.ID, p.Nomenclature, p.Coefficient, p.Kind, p.OwnerDocument,
		p.OwnerName, p.Phone, p.Email, p.Active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update property #%d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("property #%d not found", p.ID)
	}
	return nil
}

// PropertiesForAttendee returns every property the attendee represents.
func (db *DB) PropertiesForAttendee(ctx context.Context, attendeeID int64) ([]community.Property, error) {
	if err := assertJoinAllowed("attendee_properties", "properties"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM properties p
		JOIN attendee_properties ap ON ap.property_id = p.id
		WHERE ap.attendee_id = $1
		ORDER BY p.nomenclature
	`, prefixedPropertyColumns("p"))

	rows, err := db.Query(ctx, query, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("properties for attendee #%d: %w", attendeeID, err)
	}
	defer rows.Close()

	var out []community.Property
	for rows.Next() {
		var p community.Property
		if err := scanProperty(rows, &p); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func prefixedPropertyColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.nomenclature, %[1]s.coefficient, %[1]s.kind, %[1]s.owner_document, %[1]s.owner_name, %[1]s.phone, %[1]s.email, %[1]s.active, %[1]s.created_at, %[1]s.updated_at`, alias)
}
