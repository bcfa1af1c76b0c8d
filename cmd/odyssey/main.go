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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-recon/internal/app"
	"github.com/odyssey-erp/odyssey-recon/internal/observability"
	"github.com/odyssey-erp/odyssey-recon/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-recon/internal/platform/db"
	"github.com/odyssey-erp/odyssey-recon/internal/reconciliation"
	"github.com/odyssey-erp/odyssey-recon/internal/shared"
	"github.com/odyssey-erp/odyssey-recon/jobs"
	"github.com/odyssey-erp/odyssey-recon/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, migrations.FS, db.MigrateUp, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	financeService := app.NewFinanceService(cfg, dbpool, redisClient, metrics.Registerer(), logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	financeHandler := reconciliation.NewHandler(logger, financeService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	ready := map[string]app.ReadinessCheck{"postgres": dbpool.Ping}
	if redisClient != nil {
		ready["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		FinanceHandler: financeHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		Ready:          ready,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
