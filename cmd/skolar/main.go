package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skolar-erp/skolar/internal/app"
	"github.com/skolar-erp/skolar/internal/audit"
	audithttp "github.com/skolar-erp/skolar/internal/audit/http"
	"github.com/skolar-erp/skolar/internal/auth"
	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/internal/platform/cache"
	"github.com/skolar-erp/skolar/internal/rbac"
	"github.com/skolar-erp/skolar/internal/schools"
	"github.com/skolar-erp/skolar/internal/shared"
	"github.com/skolar-erp/skolar/internal/users"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("failed to connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	rbacRepo := rbac.NewRepository(pool)
	auditRepo := audit.NewRepository(pool)

	registry := audit.NewRegistry(auditRepo)
	if err := registry.Reload(ctx); err != nil {
		logger.Error("failed to load audit configs", slog.Any("error", err))
		os.Exit(1)
	}

	capture := audit.NewCapture(registry, auditRepo, metrics)
	recorder := audit.NewRecorder(auditRepo, registry, audit.RecorderConfig{
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: cfg.AuditWriteTimeout,
	})

	schoolsRepo := schools.NewRepository(pool, capture)

	rbacService := rbac.NewService(rbacRepo, usersRepo, schoolsRepo, rbac.ServiceConfig{
		CacheTTL: cfg.PermissionCacheTTL,
		Logger:   logger,
		Metrics:  metrics,
	})
	rbacMiddleware := rbac.Middleware{Service: rbacService, Recorder: recorder, Logger: logger}

	auditService := audit.NewService(auditRepo, rbacService)

	sessions := shared.NewSessionManager(redisClient, "skolar_session", cfg.SessionTTL, cfg.IsProduction())
	authService := auth.NewService(usersRepo)

	identity := app.Identity{
		Users:   usersRepo,
		RBAC:    rbacService,
		Schools: schoolsRepo,
		Logger:  logger,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		Identity:       identity,
		AuthHandler:    auth.NewHandler(logger, authService, sessions, recorder),
		RBACHandler:    rbac.NewHandler(logger, rbacService, recorder),
		RBACMiddleware: rbacMiddleware,
		AuditHandler:   audithttp.NewHandler(logger, auditService, recorder),
		SchoolsHandler: schools.NewHandler(logger, schoolsRepo),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
