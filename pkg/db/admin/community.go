package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/db/models/admin"
	"github.com/vecindia/asambleax/pkg/db/postgres"
	"go.uber.org/zap"
)

func (db *DB) initCommunities(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS communities (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			name TEXT NOT NULL,
			tax_id TEXT NOT NULL UNIQUE,
			db_name TEXT NOT NULL UNIQUE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

// CreateCommunity registers a community in the catalog. The storage unit is
// provisioned separately (see ProvisionCommunity) so a failed provisioning can
// be retried without duplicating the catalog row.
func (db *DB) CreateCommunity(ctx context.Context, c *admin.Community) error {
	if c.DbName == "" {
		c.DbName = SanitizeDbName(c.TaxID)
	}

	query := `
		INSERT INTO communities (name, tax_id, db_name, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := db.QueryRow(ctx, query, c.Name, c.TaxID, c.DbName, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("community with tax id %s already exists", c.TaxID)
		}
		return fmt.Errorf("create community: %w", err)
	}
	return nil
}

// GetCommunityByTaxID returns the catalog row for the given tax id.
func (db *DB) GetCommunityByTaxID(ctx context.Context, taxID string) (*admin.Community, error) {
	query := `
		SELECT id, name, tax_id, db_name, active, created_at, updated_at
		FROM communities
		WHERE tax_id = $1
	`
	var c admin.Community
	err := db.QueryRow(ctx, query, taxID).Scan(
		&c.ID, &c.Name, &c.TaxID, &c.DbName, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("community %s not found", taxID)
		}
		return nil, fmt.Errorf("get community %s: %w", taxID, err)
	}
	return &c, nil
}

// ListCommunities returns the full catalog ordered by name.
func (db *DB) ListCommunities(ctx context.Context) ([]admin.Community, error) {
	query := `
		SELECT id, name, tax_id, db_name, active, created_at, updated_at
		FROM communities
		ORDER BY name
	`
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	var out []admin.Community
	for rows.Next() {
		var c admin.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.DbName, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCommunityActive flips the active flag. Deactivation is always soft:
// the tenant database stays untouched and is never merged with another.
func (db *DB) SetCommunityActive(ctx context.Context, taxID string, active bool) error {
	query := `
		UPDATE communities
		SET active = $2, updated_at = $3
		WHERE tax_id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, taxID, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set community %s active=%t: %w", taxID, active, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("community %s not found", taxID)
	}

	db.Logger.Info("Community active flag updated",
		zap.String("tax_id", taxID),
		zap.Bool("active", active))
	return nil
}

// UpdateDbName repoints a community at a different tenant database, typically
// after the data has been moved. Callers must invalidate any cached routing
// entry for the tax id afterwards.
func (db *DB) UpdateDbName(ctx context.Context, taxID, dbName string) error {
	query := `
		UPDATE communities
		SET db_name = $2, updated_at = $3
		WHERE tax_id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, taxID, dbName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update community %s db name: %w", taxID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("community %s not found", taxID)
	}

	db.Logger.Info("Community database repointed",
		zap.String("tax_id", taxID),
		zap.String("db_name", dbName))
	return nil
}

// ProvisionCommunity creates the community's dedicated database. Opening the
// tenant store afterwards initializes its schema, so a partial failure here can
// simply be retried.
func (db *DB) ProvisionCommunity(ctx context.Context, c *admin.Community) error {
	if err := db.CreateDbIfNotExists(ctx, c.DbName); err != nil {
		return fmt.Errorf("provision storage unit %s: %w", c.DbName, err)
	}

	db.Logger.Info("Community storage unit provisioned",
		zap.String("tax_id", c.TaxID),
		zap.String("db_name", c.DbName))
	return nil
}
