package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-recon/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-recon/internal/reconciliation"
)

// NewFinanceService assembles the reconciliation service shared by the API
// and the worker. Without Redis, summaries are computed on every request and
// order numbers are serialised by an in-process lock.
func NewFinanceService(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, registerer prometheus.Registerer, logger *slog.Logger) *reconciliation.Service {
	opts := []reconciliation.ServiceOption{
		reconciliation.WithLogger(logger),
		reconciliation.WithMetrics(reconciliation.NewMetrics(registerer)),
		reconciliation.WithNumberAttempts(cfg.OrderNumberMaxAttempts),
	}
	if redisClient != nil {
		opts = append(opts,
			reconciliation.WithSummaryCache(reconciliation.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)),
			reconciliation.WithLocker(cache.NewLocker(redisClient, cfg.OrderNumberLockTTL)),
		)
	} else {
		logger.Warn("redis unavailable, finance summaries uncached and order numbers locked per process")
	}
	return reconciliation.NewService(reconciliation.NewRepository(pool), opts...)
}
