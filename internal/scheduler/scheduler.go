package scheduler

import (
	"context"
	"fmt"
	"time"

	"lessonflow/internal/config"
	"lessonflow/internal/service"
	"lessonflow/internal/telemetry"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger routes cron's own messages through the global zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	telemetry.Logger.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	telemetry.Logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler periodically runs the queue scanner and the recovery sweeper.
// Runs of the same task never overlap.
type Scheduler struct {
	*service.Services
	cron       *cron.Cron
	stuckAfter time.Duration
}

func NewScheduler(svc *service.Services, cfg config.ScheduleConfig) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		Services:   svc,
		cron:       cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		stuckAfter: cfg.StuckAfter,
	}

	if _, err := s.cron.AddFunc(cfg.ScanSpec, func() { s.RunScan(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid SCAN_SCHEDULE %q: %w", cfg.ScanSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.SweepSpec, func() { s.RunSweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", cfg.SweepSpec, err)
	}
	return s, nil
}

// RunScan performs one queue scan. Failures are logged and never fatal.
func (s *Scheduler) RunScan(ctx context.Context) int {
	started, err := s.Jobs.ScanAndStart(ctx)
	if err != nil {
		telemetry.Logger.Error("Scheduled queue scan failed", zap.Error(err))
		return 0
	}
	if started > 0 {
		telemetry.Logger.Info("Scheduled queue scan started jobs", zap.Int("started", started))
	}
	return started
}

func (s *Scheduler) RunSweep(ctx context.Context) int {
	restarted, err := s.Jobs.Sweep(ctx, s.stuckAfter)
	if err != nil {
		telemetry.Logger.Error("Scheduled recovery sweep failed", zap.Error(err))
		return 0
	}
	if restarted > 0 {
		telemetry.Logger.Info("Scheduled recovery sweep restarted jobs", zap.Int("restarted", restarted))
	}
	return restarted
}

// Start runs the schedule until ctx is cancelled, then waits for running tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	telemetry.Logger.Info("Starting scheduler", zap.Int("entries", len(s.cron.Entries())))
	s.cron.Start()
	<-ctx.Done()

	telemetry.Logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}
