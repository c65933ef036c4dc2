package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance carries low-priority cleanup tasks.
	QueueMaintenance = "maintenance"
	// TaskFinanceSummaryWarmup precomputes the cached finance read model.
	TaskFinanceSummaryWarmup = "finance:summary_warmup"
	// TaskIdempotencyCleanup prunes stale idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskSessionCleanup prunes expired session rows.
	TaskSessionCleanup = "maintenance:session_cleanup"
)

// FinanceWarmupPayload configures a summary warmup run.
type FinanceWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewFinanceWarmupTask constructs an Asynq task.
func NewFinanceWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(FinanceWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinanceSummaryWarmup, data), nil
}

// CleanupPayload configures a maintenance cleanup run.
type CleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(olderThanHours int) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{OlderThanHours: olderThanHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewSessionCleanupTask constructs an Asynq task.
func NewSessionCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskSessionCleanup, nil), nil
}
