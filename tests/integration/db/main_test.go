package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// Shared containers for the whole suite. Every test gets its own tenant
// database inside the Postgres container, so tests stay independent.
var (
	postgresContainer *postgres.PostgresContainer
	redisContainer    testcontainers.Container
	testLogger        *zap.Logger
)

// TestMain starts one Postgres and one Redis container and points the stores
// at them through the same environment variables production uses.
func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test logger: %v\n", err)
		os.Exit(1)
	}
	defer testLogger.Sync()

	postgresContainer, err = setupPostgresContainer(ctx)
	if err != nil {
		testLogger.Fatal("Failed to start Postgres container", zap.Error(err))
	}

	redisContainer, err = setupRedisContainer(ctx)
	if err != nil {
		testLogger.Fatal("Failed to start Redis container", zap.Error(err))
	}

	code := m.Run()

	if err := redisContainer.Terminate(ctx); err != nil {
		testLogger.Error("Failed to terminate Redis container", zap.Error(err))
	}
	if err := postgresContainer.Terminate(ctx); err != nil {
		testLogger.Error("Failed to terminate Postgres container", zap.Error(err))
	}

	os.Exit(code)
}

func setupPostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("asambleax_catalog"),
		postgres.WithUsername("asambleax"),
		postgres.WithPassword("asambleax"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	os.Setenv("POSTGRES_URL", connStr)
	os.Setenv("CATALOG_DB", "asambleax_catalog")
	return container, nil
}

func setupRedisContainer(ctx context.Context) (testcontainers.Container, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis port: %w", err)
	}

	os.Setenv("REDIS_HOST", host)
	os.Setenv("REDIS_PORT", port.Port())
	return container, nil
}
