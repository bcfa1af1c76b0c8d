package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup recomputes and caches finance summaries.
	TaskSummaryWarmup = "reconciliation:summary_warmup"
	// TaskIdempotencyCleanup prunes expired batch idempotency keys.
	TaskIdempotencyCleanup = "reconciliation:idempotency_cleanup"
)

// SummaryWarmupPayload tunes a warmup run. The unfiltered summary is always
// warmed; PerCustomer adds one summary per customer with orders.
type SummaryWarmupPayload struct {
	PerCustomer bool `json:"perCustomer"`
}

// NewSummaryWarmupTask constructs an Asynq task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}

// IdempotencyCleanupPayload sets how long processed keys are retained.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
