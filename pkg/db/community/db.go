package community

import (
	"context"
	"fmt"

	"github.com/vecindia/asambleax/pkg/db/postgres"
	"github.com/vecindia/asambleax/pkg/utils"
	"go.uber.org/zap"
)

// controlPlaneTables is the fixed deny-list of catalog tables. A query built in
// tenant scope may never join against any of them; tenant isolation relies on
// tenant data and catalog data living in different databases, and this list
// catches any attempt to bridge them in SQL.
var controlPlaneTables = map[string]bool{
	"communities":    true,
	"users":          true,
	"user_community": true,
	"audit_events":   true,
	"schema_history": true,
}

// ErrControlPlaneScope is returned when a tenant store is opened against the
// control-plane database. This is a wiring bug, never a runtime condition to
// swallow.
var ErrControlPlaneScope = fmt.Errorf("tenant store bound to control-plane database")

// DB is the store for one community's dedicated database. Every read and write
// of tenant-scoped entities goes through an instance of this type, bound to the
// storage unit the tenant router resolved for the current request or task.
type DB struct {
	postgres.Client
	Name  string
	TaxID string
}

// New opens (and if needed initializes) the tenant database dbName for the
// community identified by taxID. It refuses the control-plane database.
func New(ctx context.Context, logger *zap.Logger, taxID, dbName string) (*DB, error) {
	if err := AssertTenantScope(dbName); err != nil {
		return nil, err
	}

	client, err := postgres.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("component", "tenant"),
		zap.String("community", taxID),
	), dbName, postgres.PoolConfigFor("tenant"))
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: dbName, TaxID: taxID}
	if err := db.InitializeDB(ctx); err != nil {
		db.Pool.Close()
		return nil, err
	}
	return db, nil
}

// AssertTenantScope rejects database names that belong to the control plane.
func AssertTenantScope(dbName string) error {
	if dbName == "" || dbName == utils.Env("CATALOG_DB", "asambleax_catalog") {
		return fmt.Errorf("%w: %q", ErrControlPlaneScope, dbName)
	}
	return nil
}

// assertJoinAllowed guards fmt-composed queries against control-plane tables.
func assertJoinAllowed(tables ...string) error {
	for _, t := range tables {
		if controlPlaneTables[t] {
			return fmt.Errorf("join with control-plane table %q is not allowed from tenant scope", t)
		}
	}
	return nil
}

// DatabaseName returns the tenant database backing this community.
func (db *DB) DatabaseName() string {
	return db.Name
}

// CommunityID returns the tax id this store was resolved for.
func (db *DB) CommunityID() string {
	return db.TaxID
}

// Close terminates the underlying connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB creates the tenant schema if it does not already exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Debug("Initializing tenant schema", zap.String("database", db.Name))

	for _, init := range []func(context.Context) error{
		db.initProperties,
		db.initAttendees,
		db.initMeetings,
		db.initQuestions,
		db.initOptions,
		db.initVotes,
	} {
		if err := init(ctx); err != nil {
			return err
		}
	}
	return nil
}
