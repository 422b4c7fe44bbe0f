package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/db/models/admin"
	"github.com/vecindia/asambleax/pkg/utils"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how long a successful resolution is reused before the
// catalog is consulted again.
const DefaultCacheTTL = time.Hour

// ErrCommunityNotFound is returned for unknown and for inactive communities.
// Callers must treat it as an authorization boundary: there is no default
// tenant to fall back to.
var ErrCommunityNotFound = errors.New("community not found")

// Catalog is the control-plane lookup the router depends on.
type Catalog interface {
	GetCommunityByTaxID(ctx context.Context, taxID string) (*admin.Community, error)
}

// Opener opens a tenant store for a resolved community. Injectable for tests.
type Opener func(ctx context.Context, logger *zap.Logger, taxID, dbName string) (*community.DB, error)

type cacheEntry struct {
	store     *community.DB
	expiresAt time.Time
}

// Router resolves a community tax id to the store bound to that community's
// storage unit. Resolutions are cached with a TTL; store handles are pooled
// per database name and reused across requests. A task resolves its tenant
// once and keeps that store for its entire lifetime.
type Router struct {
	catalog Catalog
	logger  *zap.Logger
	ttl     time.Duration
	open    Opener

	entries *xsync.Map[string, cacheEntry]      // tax id -> cached resolution
	stores  *xsync.Map[string, *community.DB]   // db name -> pooled handle
}

// NewRouter builds a router over the catalog. The resolution TTL defaults to
// DefaultCacheTTL and can be overridden via TENANT_CACHE_TTL_SECONDS.
func NewRouter(catalog Catalog, logger *zap.Logger) *Router {
	ttl := time.Duration(utils.EnvInt64("TENANT_CACHE_TTL_SECONDS", int64(DefaultCacheTTL/time.Second))) * time.Second

	return &Router{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "tenant_router")),
		ttl:     ttl,
		open:    community.New,
		entries: xsync.NewMap[string, cacheEntry](),
		stores:  xsync.NewMap[string, *community.DB](),
	}
}

// WithTTL overrides the resolution cache TTL.
func (r *Router) WithTTL(ttl time.Duration) *Router {
	r.ttl = ttl
	return r
}

// WithOpener overrides how tenant stores are opened.
func (r *Router) WithOpener(open Opener) *Router {
	r.open = open
	return r
}

// Resolve maps a community tax id to its tenant store. Unknown and inactive
// communities both yield ErrCommunityNotFound.
func (r *Router) Resolve(ctx context.Context, taxID string) (*community.DB, error) {
	if taxID == "" {
		return nil, fmt.Errorf("%w: empty community id", ErrCommunityNotFound)
	}

	if e, ok := r.entries.Load(taxID); ok && time.Now().Before(e.expiresAt) {
		return e.store, nil
	}

	c, err := r.catalog.GetCommunityByTaxID(ctx, taxID)
	if err != nil {
		r.logger.Debug("Community lookup failed", zap.String("tax_id", taxID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrCommunityNotFound, taxID)
	}
	if !c.Active {
		r.logger.Warn("Rejected resolution of inactive community", zap.String("tax_id", taxID))
		return nil, fmt.Errorf("%w: %s", ErrCommunityNotFound, taxID)
	}

	store, err := r.storeFor(ctx, c)
	if err != nil {
		return nil, err
	}

	r.entries.Store(taxID, cacheEntry{store: store, expiresAt: time.Now().Add(r.ttl)})
	return store, nil
}

// storeFor returns the pooled handle for the community's storage unit, opening
// it on first use.
func (r *Router) storeFor(ctx context.Context, c *admin.Community) (*community.DB, error) {
	if store, ok := r.stores.Load(c.DbName); ok {
		return store, nil
	}

	store, err := r.open(ctx, r.logger, c.TaxID, c.DbName)
	if err != nil {
		return nil, fmt.Errorf("open storage unit %s for community %s: %w", c.DbName, c.TaxID, err)
	}

	// Another goroutine may have opened the same unit concurrently; keep the
	// first handle and close ours.
	if existing, loaded := r.stores.LoadOrStore(c.DbName, store); loaded {
		_ = store.Close()
		return existing, nil
	}
	return store, nil
}

// Invalidate drops the cached resolution for a tax id. Must be called whenever
// a community's storage-unit name or active flag changes in the catalog.
func (r *Router) Invalidate(taxID string) {
	r.entries.Delete(taxID)
	r.logger.Info("Tenant resolution invalidated", zap.String("tax_id", taxID))
}

// Close closes every pooled tenant handle.
func (r *Router) Close() {
	r.stores.Range(func(name string, store *community.DB) bool {
		_ = store.Close()
		r.stores.Delete(name)
		return true
	})
	r.entries.Clear()
}
