package api

import (
	"context"

	"github.com/vecindia/asambleax/app/api/types"
	admindb "github.com/vecindia/asambleax/pkg/db/admin"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/logging"
	"github.com/vecindia/asambleax/pkg/quorum"
	"github.com/vecindia/asambleax/pkg/redis"
	"github.com/vecindia/asambleax/pkg/tenant"
	temporalclient "github.com/vecindia/asambleax/pkg/temporal"
	"github.com/vecindia/asambleax/pkg/utils"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	catalogDb, catalogErr := admindb.New(ctx, logger)
	if catalogErr != nil {
		logger.Fatal("Unable to initialize catalog database", zap.Error(catalogErr))
	}

	// Initialize catalog tables (communities, etc.)
	if err := catalogDb.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize catalog tables", zap.Error(err))
	}

	// Initialize Redis client for locks, quorum cache and real-time events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "true") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - real-time events and quorum cache disabled",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - real-time events and quorum cache will not be available")
	}

	// Temporal client for queued vote registration (optional)
	var tClient *temporalclient.Client
	if utils.Env("TEMPORAL_ENABLED", "true") == "true" {
		tClient, err = temporalclient.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Temporal client - vote submission disabled", zap.Error(err))
			tClient = nil
		}
	}

	publisher := events.NewPublisher(redisClient, logger)

	app := &types.App{
		CatalogDB:      catalogDb,
		Router:         tenant.NewRouter(catalogDb, logger),
		RedisClient:    redisClient,
		Events:         publisher,
		Quorum:         quorum.NewService(redisClient, publisher, logger),
		Voting:         voting.NewService(publisher, logger),
		TemporalClient: tClient,
		Logger:         logger,
	}

	return app
}
