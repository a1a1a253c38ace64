package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"lessonflow/internal/api"
	"lessonflow/internal/config"
	"lessonflow/internal/events"
	"lessonflow/internal/lifecycle"
	"lessonflow/internal/probe"
	"lessonflow/internal/rendition"
	"lessonflow/internal/repository"
	"lessonflow/internal/repository/memory"
	"lessonflow/internal/repository/postgres"
	"lessonflow/internal/repository/redis"
	"lessonflow/internal/runner"
	"lessonflow/internal/scheduler"
	"lessonflow/internal/service"
	"lessonflow/internal/telemetry"
	"lessonflow/internal/worker"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		telemetry.Logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if err := telemetry.InitLogger(cfg.Log.Level, cfg.Log.Dir); err != nil {
		telemetry.Logger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer telemetry.Logger.Sync()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		telemetry.Logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	telemetry.Logger.Info("Starting application", zap.String("mode", cfg.AppMode))
	if err := app.Run(ctx); err != nil {
		telemetry.Logger.Fatal("Application error", zap.String("mode", cfg.AppMode), zap.Error(err))
	}
}

type app struct {
	cfg     *config.Config
	svc     *service.Services
	manager *lifecycle.Manager
	source  worker.EventSource
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	metrics, err := telemetry.NewDefaultMetricsClient()
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	uploads, err := a.openEvents(cfg, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	r := runner.NewExecRunner()
	a.manager = lifecycle.NewManager(lifecycle.ManagerConfig{
		Store:             store,
		Inspector:         probe.NewInspector(r, cfg.Media.FFprobePath),
		Renderer:          rendition.NewEncoder(r, cfg.Media.FFmpegPath, cfg.Media.SegmentSeconds),
		Metrics:           metrics,
		OutputRoot:        cfg.Media.OutputRoot,
		DefaultBaseURL:    cfg.Media.PublicBaseURL,
		MaxConcurrentJobs: cfg.Media.MaxConcurrentJobs,
		StuckAfter:        cfg.Schedule.StuckAfter,
	})

	a.svc = service.NewServices(metrics, a.manager, uploads)
	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Backend {
	case "redis":
		client, err := redis.NewDefaultRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		telemetry.Logger.Warn("Using in-memory store; job state is lost on restart")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// openEvents sets up the upload event source for the worker and returns the
// matching publisher, or nil when EVENT_SOURCE=none.
func (a *app) openEvents(cfg *config.Config, store repository.Store) (service.UploadPublisher, error) {
	switch cfg.Events.Source {
	case "redis":
		client, ok := store.(*redis.DefaultRedisClient)
		if !ok {
			var err error
			if client, err = redis.NewDefaultRedisClient(cfg.Store.RedisAddr); err != nil {
				return nil, err
			}
			a.closers = append(a.closers, client.Close)
		}
		a.source = client
		return client, nil
	case "amqp":
		source, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, source.Close)
		a.source = source
		return source, nil
	}
	return nil, nil
}

// Run starts the components selected by APP_MODE and blocks until ctx ends or one fails.
func (a *app) Run(ctx context.Context) error {
	mode := a.cfg.AppMode
	g, ctx := errgroup.WithContext(ctx)

	if mode == "server" || mode == "api" || mode == "all" {
		server := api.NewServer(a.svc, a.cfg.Port, a.cfg.Media.OutputRoot)
		g.Go(func() error { return server.Start(ctx) })
	}

	if mode == "worker" || mode == "all" {
		if a.source == nil {
			return fmt.Errorf("APP_MODE=%s needs an EVENT_SOURCE", mode)
		}
		workerSvc := worker.NewWorkerService(a.svc, a.source, worker.DefaultParallelism, nil)
		if err := workerSvc.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			workerSvc.Wait()
			return nil
		})
	}

	if mode == "scheduler" || mode == "all" {
		sched, err := scheduler.NewScheduler(a.svc, a.cfg.Schedule)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Start(ctx) })
	}

	return g.Wait()
}

// Close waits up to SHUTDOWN_GRACE_SECONDS for running jobs before closing the
// store and event source. Jobs still running are left for the recovery sweep.
func (a *app) Close() {
	if a.manager != nil {
		if !a.manager.Drain(a.cfg.ShutdownGrace) {
			telemetry.Logger.Warn("Shutdown grace period elapsed with jobs still running",
				zap.Duration("grace", a.cfg.ShutdownGrace))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			telemetry.Logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}
