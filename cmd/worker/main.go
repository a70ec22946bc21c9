package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skolar-erp/skolar/internal/app"
	"github.com/skolar-erp/skolar/internal/audit"
	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("failed to create pg pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditRepo := audit.NewRepository(pool)
	registry := audit.NewRegistry(auditRepo)
	if err := registry.Reload(ctx); err != nil {
		logger.Error("failed to load audit configs", slog.Any("error", err))
		os.Exit(1)
	}
	recorder := audit.NewRecorder(auditRepo, registry, audit.RecorderConfig{
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: cfg.AuditWriteTimeout,
	})
	sweeper := audit.NewSweeper(registry, auditRepo, recorder, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRetention, Handler: jobs.NewAuditRetentionHandler(registry, sweeper, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RetentionCronSpec, Task: jobs.NewAuditRetentionTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("failed to build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr), slog.String("retention_cron", cfg.RetentionCronSpec))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
