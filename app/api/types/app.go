package types

import (
	"context"
	"net/http"
	"time"

	admindb "github.com/vecindia/asambleax/pkg/db/admin"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/quorum"
	"github.com/vecindia/asambleax/pkg/redis"
	"github.com/vecindia/asambleax/pkg/tenant"
	temporalclient "github.com/vecindia/asambleax/pkg/temporal"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.uber.org/zap"
)

type App struct {
	CatalogDB *admindb.DB
	Router    *tenant.Router
	// RedisClient backs locks, the quorum cache and pub/sub. Optional: nil
	// disables websocket streaming and degrades quorum to recompute-per-read.
	RedisClient *redis.Client
	Events      *events.Publisher
	Quorum      *quorum.Service
	Voting      *voting.Service
	// TemporalClient submits vote registrations. Optional in read-only deployments.
	TemporalClient *temporalclient.Client
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Router.Close()
	if err := a.CatalogDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if a.TemporalClient != nil {
		a.TemporalClient.TClient.Close()
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Hasta luego!")
}
