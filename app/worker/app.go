package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	admindb "github.com/vecindia/asambleax/pkg/db/admin"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/logging"
	"github.com/vecindia/asambleax/pkg/quorum"
	"github.com/vecindia/asambleax/pkg/redis"
	"github.com/vecindia/asambleax/pkg/registrar/activity"
	"github.com/vecindia/asambleax/pkg/registrar/workflow"
	"github.com/vecindia/asambleax/pkg/tenant"
	"github.com/vecindia/asambleax/pkg/temporal"
	"github.com/vecindia/asambleax/pkg/utils"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Router         *tenant.Router
	Quorum         *quorum.Service
	Community      string

	// Cron keeps the quorum snapshot warm across cache TTL expiry.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	a.Cron.Start()
	a.Logger.Info("Quorum refresh scheduled", zap.String("cronSpec", a.CronSpec))

	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	<-a.Cron.Stop().Done()
	a.Worker.Stop()
	a.Router.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Hasta luego!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	catalogDb, catalogErr := admindb.New(ctx, logger)
	if catalogErr != nil {
		logger.Fatal("Unable to initialize catalog database", zap.Error(catalogErr))
	}
	if err := catalogDb.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize catalog tables", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	community := utils.Env("COMMUNITY_ID", "")
	if community == "" {
		logger.Fatal("COMMUNITY_ID environment variable is required")
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish redis connection", zap.Error(err))
	}

	publisher := events.NewPublisher(redisClient, logger)
	router := tenant.NewRouter(catalogDb, logger)
	quorumSvc := quorum.NewService(redisClient, publisher, logger)

	// Fail fast if the community is unknown or inactive rather than polling a
	// queue nothing will ever submit to.
	if _, err := router.Resolve(ctx, community); err != nil {
		logger.Fatal("Unable to resolve community", zap.String("community", community), zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:      logger,
		Router:      router,
		RedisClient: redisClient,
		Events:      publisher,
	}
	workflowContext := workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
	}

	// One worker per community queue: a busy assembly only backs up its own
	// registrations.
	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.GetVotesQueue(community),
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:   10,
			MaxConcurrentActivityTaskPollers:   10,
			MaxConcurrentActivityExecutionSize: utils.EnvInt("WORKER_MAX_CONCURRENT_ACTIVITIES", 100),
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)

	wkr.RegisterWorkflowWithOptions(
		workflowContext.RegisterVoteWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.RegisterVoteWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.RegisterParticipantVoteWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.RegisterParticipantVoteWorkflowName},
	)
	wkr.RegisterActivity(activityContext.RegisterVote)
	wkr.RegisterActivity(activityContext.RegisterAttendeeVote)

	app := &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Router:         router,
		Quorum:         quorumSvc,
		Community:      community,
		CronSpec:       utils.Env("QUORUM_REFRESH_CRON", "0 */5 * * * *"),
		Logger:         logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger); err != nil {
		logger.Fatal("Unable to schedule quorum refresh", zap.Error(err))
	}

	return app
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()

		store, err := a.Router.Resolve(rctx, a.Community)
		if err != nil {
			logger.Info("quorum refresh skipped", "community", a.Community, "error", err)
			return
		}
		if _, err := a.Quorum.Recompute(rctx, store); err != nil {
			logger.Info("quorum refresh error", "community", a.Community, "error", err)
		}
	})
	return err
}
