package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/quorum"
	"github.com/vecindia/asambleax/pkg/redis"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestQuorumRecomputePublishesAndGetStaysSilent(t *testing.T) {
	catalog := createCatalogStore(t)
	store := createTenantStore(t, catalog, uniqueTaxID())
	redisClient := createRedisClient(t)

	p1 := seedProperty(t, store, "T3-301", "1.50", true)
	seedProperty(t, store, "T3-302", "2.50", true)
	seedAttendee(t, store, "Ana Torres", p1)

	ctx := context.Background()
	sub := redisClient.PSubscribe(ctx, events.Pattern(store.TaxID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription was not established")
	messages := sub.Channel()

	svc := quorum.NewService(redisClient, events.NewPublisher(redisClient, testLogger), testLogger)

	// A cold read recomputes but must not notify anyone.
	snap, err := svc.Get(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 1, snap.PropertiesPresent)
	require.Equal(t, 2, snap.ActiveProperties)
	require.InDelta(t, 37.5, snap.Percentage, 0.001)

	select {
	case msg := <-messages:
		t.Fatalf("cache-miss read published %q", msg.Payload)
	case <-time.After(500 * time.Millisecond):
	}

	// An explicit recompute notifies observers.
	snap, err = svc.Recompute(ctx, store)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		var env events.Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		require.Equal(t, events.TypeQuorumUpdated, env.Type)
		require.Equal(t, store.TaxID, env.Community)

		var payload events.QuorumPayload
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		require.Equal(t, snap.PropertiesPresent, payload.PropertiesPresent)
		require.InDelta(t, snap.Percentage, payload.Percentage, 0.001)
	case <-time.After(5 * time.Second):
		t.Fatal("recompute did not publish quorum.updated")
	}
}

func TestQuorumServesLocalCopyWhenRedisIsDown(t *testing.T) {
	catalog := createCatalogStore(t)
	store := createTenantStore(t, catalog, uniqueTaxID())

	ctx := context.Background()

	// A dedicated Redis so killing it cannot disturb the shared container.
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port.Port())

	observedCore, logs := observer.New(zap.WarnLevel)
	logger := zap.New(observedCore)

	client, err := redis.NewClient(ctx, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	svc := quorum.NewService(client, events.NewPublisher(client, logger), logger)

	p1 := seedProperty(t, store, "T3-303", "2.00", true)
	seedProperty(t, store, "T3-304", "2.00", true)
	seedAttendee(t, store, "Pedro Salazar", p1)

	primed, err := svc.Recompute(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 1, primed.PropertiesPresent)

	require.NoError(t, container.Terminate(ctx))

	snap, err := svc.Get(ctx, store)
	require.NoError(t, err, "the in-process copy must keep serving when the cache is gone")
	require.Equal(t, primed.PropertiesPresent, snap.PropertiesPresent)
	require.InDelta(t, primed.Percentage, snap.Percentage, 0.001)

	require.NotZero(t, logs.FilterMessage("Quorum cache read failed, using local copy").Len(),
		"the degraded read must be visible in the logs")
}
