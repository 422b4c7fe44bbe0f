package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	admindb "github.com/vecindia/asambleax/pkg/db/admin"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/db/models/admin"
	model "github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/redis"
	"github.com/vecindia/asambleax/pkg/registrar/activity"
	"github.com/vecindia/asambleax/pkg/tenant"
	"go.uber.org/zap"
)

var taxSeq atomic.Int64

// uniqueTaxID generates a tax id no other test in this run uses, so every
// test provisions its own tenant database.
func uniqueTaxID() string {
	return fmt.Sprintf("9%09d%03d", time.Now().UnixNano()%1_000_000_000, taxSeq.Add(1)%1000)
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// createCatalogStore opens the control-plane store against the shared
// container.
func createCatalogStore(t *testing.T) *admindb.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog, err := admindb.New(ctx, testLogger.With(zap.String("test", t.Name())))
	require.NoError(t, err, "failed to open catalog store")

	t.Cleanup(func() {
		if err := catalog.Close(); err != nil {
			t.Logf("failed to close catalog store: %v", err)
		}
	})
	return catalog
}

// createTenantStore provisions a fresh tenant database for taxID and opens a
// store bound to it. The database is dropped on cleanup.
func createTenantStore(t *testing.T, catalog *admindb.DB, taxID string) *communitydb.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := admindb.SanitizeDbName(taxID)
	require.NoError(t, catalog.CreateDbIfNotExists(ctx, dbName))

	store, err := communitydb.New(ctx, testLogger.With(zap.String("test", t.Name())), taxID, dbName)
	require.NoError(t, err, "failed to open tenant store")

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close tenant store: %v", err)
		}

		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()

		dropQuery := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pgx.Identifier{dbName}.Sanitize())
		if err := catalog.Exec(dropCtx, dropQuery); err != nil {
			t.Logf("failed to drop database %s: %v", dbName, err)
		}
	})
	return store
}

// createRedisClient connects to the shared Redis container.
func createRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, testLogger.With(zap.String("test", t.Name())))
	require.NoError(t, err, "failed to connect to redis")

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
	})
	return client
}

// createActivityContext wires a registration activity context the way the
// worker does: catalog row, router resolving to the already-open store, real
// Redis locks and event publishing.
func createActivityContext(t *testing.T, catalog *admindb.DB, store *communitydb.DB, redisClient *redis.Client) *activity.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := &admin.Community{Name: "Test " + store.TaxID, TaxID: store.TaxID, DbName: store.Name, Active: true}
	require.NoError(t, catalog.CreateCommunity(ctx, c))

	logger := testLogger.With(zap.String("test", t.Name()))
	router := tenant.NewRouter(catalog, logger).
		WithOpener(func(context.Context, *zap.Logger, string, string) (*communitydb.DB, error) {
			return store, nil
		})

	return &activity.Context{
		Logger:      logger,
		Router:      router,
		RedisClient: redisClient,
		Events:      events.NewPublisher(redisClient, logger),
	}
}

// Data seeds

func seedProperty(t *testing.T, store *communitydb.DB, nomenclature, coefficient string, active bool) *model.Property {
	t.Helper()

	p := &model.Property{
		Nomenclature: nomenclature,
		Coefficient:  dec(t, coefficient),
		Kind:         "apartment",
		Active:       active,
	}
	require.NoError(t, store.InsertProperty(context.Background(), p))
	return p
}

func seedMeeting(t *testing.T, store *communitydb.DB) *model.Meeting {
	t.Helper()

	m := &model.Meeting{Title: "Asamblea general", ScheduledAt: time.Now().UTC()}
	require.NoError(t, store.InsertMeeting(context.Background(), m))
	return m
}

func seedQuestion(t *testing.T, store *communitydb.DB, meetingID int64, state model.QuestionState) *model.Question {
	t.Helper()

	q := &model.Question{MeetingID: meetingID, Text: "¿Aprueba el presupuesto?", State: state}
	require.NoError(t, store.InsertQuestion(context.Background(), q))
	return q
}

func seedOption(t *testing.T, store *communitydb.DB, questionID int64, label string) *model.Option {
	t.Helper()

	o := &model.Option{QuestionID: questionID, Label: label}
	require.NoError(t, store.InsertOption(context.Background(), o))
	return o
}

func seedAttendee(t *testing.T, store *communitydb.DB, name string, properties ...*model.Property) *model.Attendee {
	t.Helper()

	a := &model.Attendee{Name: name, AccessCode: uuid.NewString()}
	for _, p := range properties {
		a.Properties = append(a.Properties, model.AttendeeProperty{
			PropertyID:  p.ID,
			Coefficient: p.Coefficient,
		})
	}
	require.NoError(t, store.InsertAttendee(context.Background(), a))
	return a
}
