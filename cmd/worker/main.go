package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/importpro/importpro/internal/app"
	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/platform/cache"
	"github.com/importpro/importpro/internal/platform/db"
	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/shared"
	"github.com/importpro/importpro/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	financeRepo := finance.NewRepository(pool)
	financeCache := finance.NewCache(redisClient, cfg.FinanceCacheTTL)
	financeService := finance.NewService(financeRepo, financeCache, rbac.NewService(pool), logger)

	warmupJob := jobs.NewFinanceWarmupJob(financeService, logger)
	maintenanceJob := jobs.NewMaintenanceJob(pool, shared.NewIdempotencyStore(pool), logger)

	warmupTask, err := jobs.NewFinanceWarmupTask("cron")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	idempotencyTask, err := jobs.NewIdempotencyCleanupTask(48)
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	sessionTask, err := jobs.NewSessionCleanupTask()
	if err != nil {
		logger.Error("build session cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker := jobs.NewWorker(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	worker.Handle(jobs.TaskFinanceSummaryWarmup, warmupJob.Handle)
	worker.Handle(jobs.TaskIdempotencyCleanup, maintenanceJob.HandleIdempotencyCleanup)
	worker.Handle(jobs.TaskSessionCleanup, maintenanceJob.HandleSessionCleanup)

	worker.Schedule("*/30 * * * *", warmupTask, asynq.MaxRetry(3))
	worker.Schedule("15 2 * * *", idempotencyTask, asynq.MaxRetry(3), asynq.Queue(jobs.QueueMaintenance))
	worker.Schedule("45 2 * * *", sessionTask, asynq.MaxRetry(3), asynq.Queue(jobs.QueueMaintenance))

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
