package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-recon/internal/jobs"
	"github.com/odyssey-erp/odyssey-recon/internal/reconciliation"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummarySource is the slice of the reconciliation service the warmup needs.
type SummarySource interface {
	GetFinanceSummary(ctx context.Context, criteria reconciliation.FilterCriteria) (reconciliation.Summary, error)
	GetFilterOptions(ctx context.Context) (reconciliation.FilterOptions, error)
}

// SummaryWarmupJob pre-populates the finance summary cache.
type SummaryWarmupJob struct {
	Source  SummarySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(source SummarySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{Source: source, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("summary warmup payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskSummaryWarmup)
	started := time.Now()
	logger := j.logger().With(slog.Bool("per_customer", payload.PerCustomer))
	logger.Info("starting summary warmup")

	scopes := []reconciliation.FilterCriteria{{}}
	if payload.PerCustomer {
		customers, err := j.customerScopes(ctx)
		if err != nil {
			logger.Error("load warmup scopes", slog.Any("error", err))
			return tracker.End(err)
		}
		scopes = append(scopes, customers...)
	}

	for _, scope := range scopes {
		if err := j.warm(ctx, scope); err != nil {
			logger.Error("warm summary", slog.Any("customer_id", scope.CustomerID), slog.Any("error", err))
			return tracker.End(err)
		}
	}

	logger.Info("completed summary warmup", slog.Int("scopes", len(scopes)), slog.Duration("duration", time.Since(started)))
	return tracker.End(nil)
}

func (j *SummaryWarmupJob) warm(ctx context.Context, criteria reconciliation.FilterCriteria) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	_, err := j.Source.GetFinanceSummary(ctx, criteria)
	return err
}

func (j *SummaryWarmupJob) customerScopes(ctx context.Context) ([]reconciliation.FilterCriteria, error) {
	options, err := j.Source.GetFilterOptions(ctx)
	if err != nil {
		return nil, err
	}
	scopes := make([]reconciliation.FilterCriteria, 0, len(options.Customers))
	for _, opt := range options.Customers {
		id, err := strconv.ParseInt(opt.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("customer option %q: %w", opt.Value, err)
		}
		scopes = append(scopes, reconciliation.FilterCriteria{CustomerID: &id})
	}
	return scopes, nil
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSummaryWarmup))
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
