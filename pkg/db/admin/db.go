package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/vecindia/asambleax/pkg/db/postgres"
	"github.com/vecindia/asambleax/pkg/utils"
	"go.uber.org/zap"
)

// DB is the control-plane database holding the community catalog. Tenant data
// never lives here; every community gets its own database provisioned through
// ProvisionCommunity.
type DB struct {
	postgres.Client
	Name string
}

// New connects to the catalog database (CATALOG_DB, default asambleax_catalog)
// and ensures its schema exists.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	name := utils.Env("CATALOG_DB", "asambleax_catalog")

	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", "catalog"),
	), name, postgres.PoolConfigFor("catalog"))
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the catalog tables if they do not already exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Debug("Initializing catalog database", zap.String("database", db.Name))
	return db.initCommunities(ctx)
}

// Close terminates the underlying connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// DatabaseName returns the catalog database name.
func (db *DB) DatabaseName() string {
	return db.Name
}

// SanitizeDbName derives a tenant database name from a community tax id.
func SanitizeDbName(taxID string) string {
	s := strings.ToLower(taxID)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return fmt.Sprintf("asamblea_%s", s)
}
