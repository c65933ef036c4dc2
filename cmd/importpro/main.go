package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/importpro/importpro/internal/app"
	"github.com/importpro/importpro/internal/auth"
	"github.com/importpro/importpro/internal/catalog"
	"github.com/importpro/importpro/internal/clients"
	"github.com/importpro/importpro/internal/delivery"
	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/groupage"
	"github.com/importpro/importpro/internal/observability"
	"github.com/importpro/importpro/internal/platform/cache"
	"github.com/importpro/importpro/internal/platform/db"
	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/sales"
	"github.com/importpro/importpro/internal/shared"
	"github.com/importpro/importpro/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "importpro_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	financeRepo := finance.NewRepository(dbpool)
	financeCache := finance.NewCache(redisClient, cfg.FinanceCacheTTL)
	financeService := finance.NewService(financeRepo, financeCache, rbacService, logger)
	financeHandler := finance.NewHandler(logger, financeService, func(ctx context.Context, reason string) error {
		_, err := jobsClient.EnqueueFinanceWarmup(ctx, reason)
		return err
	})

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	groupageRepo := groupage.NewRepository(dbpool)
	groupageService := groupage.NewService(groupageRepo, catalogService, auditLogger, financeService, logger)
	groupageHandler := groupage.NewHandler(logger, groupageService)

	clientsRepo := clients.NewRepository(dbpool)
	clientsService := clients.NewService(clientsRepo, auditLogger, logger, cfg.DefaultPhoneRegion)
	clientsHandler := clients.NewHandler(logger, clientsService)

	metrics := observability.NewMetrics()

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, groupageService, auditLogger, financeService, shared.NewIdempotencyStore(dbpool), logger)
	salesHandler := sales.NewHandler(logger, salesService, metrics)

	deliveryRepo := delivery.NewRepository(dbpool)
	deliveryService := delivery.NewService(deliveryRepo, auditLogger, financeService, logger)
	deliveryHandler := delivery.NewHandler(logger, deliveryService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		CatalogHandler:  catalogHandler,
		GroupageHandler: groupageHandler,
		ClientsHandler:  clientsHandler,
		SalesHandler:    salesHandler,
		DeliveryHandler: deliveryHandler,
		FinanceHandler:  financeHandler,
		JobHandler:      jobHandler,
		RBACMiddleware:  rbacMiddleware,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
