package tenant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/db/models/admin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeCatalog struct {
	communities map[string]*admin.Community
	lookups     atomic.Int64
}

func (f *fakeCatalog) GetCommunityByTaxID(_ context.Context, taxID string) (*admin.Community, error) {
	f.lookups.Add(1)
	c, ok := f.communities[taxID]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return c, nil
}

func newTestRouter(t *testing.T, catalog *fakeCatalog) (*Router, *atomic.Int64) {
	t.Helper()
	opened := &atomic.Int64{}
	r := NewRouter(catalog, zaptest.NewLogger(t)).WithOpener(
		func(_ context.Context, _ *zap.Logger, taxID, dbName string) (*community.DB, error) {
			opened.Add(1)
			return &community.DB{Name: dbName, TaxID: taxID}, nil
		})
	return r, opened
}

func TestNewRouterReadsTTLFromEnv(t *testing.T) {
	t.Setenv("TENANT_CACHE_TTL_SECONDS", "7")
	r := NewRouter(&fakeCatalog{}, zaptest.NewLogger(t))
	require.Equal(t, 7*time.Second, r.ttl)
}

func TestNewRouterDefaultTTL(t *testing.T) {
	r := NewRouter(&fakeCatalog{}, zaptest.NewLogger(t))
	require.Equal(t, DefaultCacheTTL, r.ttl)
}

func TestResolveUnknownCommunity(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCatalog{})

	_, err := r.Resolve(context.Background(), "900111222")
	require.ErrorIs(t, err, ErrCommunityNotFound)

	_, err = r.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrCommunityNotFound)
}

func TestResolveInactiveCommunity(t *testing.T) {
	catalog := &fakeCatalog{communities: map[string]*admin.Community{
		"900111222": {ID: 1, TaxID: "900111222", DbName: "asamblea_900111222", Active: false},
	}}
	r, opened := newTestRouter(t, catalog)

	_, err := r.Resolve(context.Background(), "900111222")
	require.ErrorIs(t, err, ErrCommunityNotFound)
	require.EqualValues(t, 0, opened.Load())
}

func TestResolveCachesWithinTTL(t *testing.T) {
	catalog := &fakeCatalog{communities: map[string]*admin.Community{
		"900111222": {ID: 1, TaxID: "900111222", DbName: "asamblea_900111222", Active: true},
	}}
	r, opened := newTestRouter(t, catalog)

	first, err := r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)

	require.Same(t, first, second)
	require.EqualValues(t, 1, catalog.lookups.Load())
	require.EqualValues(t, 1, opened.Load())
	require.Equal(t, "asamblea_900111222", first.Name)
	require.Equal(t, "900111222", first.TaxID)
}

func TestResolveExpiredEntryHitsCatalogAgain(t *testing.T) {
	catalog := &fakeCatalog{communities: map[string]*admin.Community{
		"900111222": {ID: 1, TaxID: "900111222", DbName: "asamblea_900111222", Active: true},
	}}
	r, opened := newTestRouter(t, catalog)
	r.WithTTL(-time.Second)

	_, err := r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)

	require.EqualValues(t, 2, catalog.lookups.Load())
	// The storage handle stays pooled across re-resolutions.
	require.EqualValues(t, 1, opened.Load())
}

func TestInvalidatePicksUpCatalogChanges(t *testing.T) {
	catalog := &fakeCatalog{communities: map[string]*admin.Community{
		"900111222": {ID: 1, TaxID: "900111222", DbName: "asamblea_900111222", Active: true},
	}}
	r, _ := newTestRouter(t, catalog)

	_, err := r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)

	catalog.communities["900111222"].Active = false
	r.Invalidate("900111222")

	_, err = r.Resolve(context.Background(), "900111222")
	require.ErrorIs(t, err, ErrCommunityNotFound)
}

func TestStoresPooledPerStorageUnit(t *testing.T) {
	catalog := &fakeCatalog{communities: map[string]*admin.Community{
		"900111222": {ID: 1, TaxID: "900111222", DbName: "asamblea_shared", Active: true},
		"900333444": {ID: 2, TaxID: "900333444", DbName: "asamblea_shared", Active: true},
	}}
	r, opened := newTestRouter(t, catalog)

	a, err := r.Resolve(context.Background(), "900111222")
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), "900333444")
	require.NoError(t, err)

	require.Same(t, a, b)
	require.EqualValues(t, 1, opened.Load())
}
