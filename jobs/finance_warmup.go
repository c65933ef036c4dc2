package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/importpro/importpro/internal/finance"
)

// FinanceWarmupJob pre-populates the cached finance summary so the first
// dashboard hit after an invalidation does not pay the aggregation cost.
type FinanceWarmupJob struct {
	Finance *finance.Service
	Logger  *slog.Logger
}

// NewFinanceWarmupJob wires dependencies for the warmup handler.
func NewFinanceWarmupJob(financeSvc *finance.Service, logger *slog.Logger) *FinanceWarmupJob {
	return &FinanceWarmupJob{Finance: financeSvc, Logger: logger}
}

// Handle processes finance warmup tasks.
func (j *FinanceWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Finance == nil {
		return errors.New("finance warmup: handler not configured")
	}
	var payload FinanceWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := j.Finance.WarmSummary(warmCtx); err != nil {
		logger.Error("warm finance summary", slog.Any("error", err))
		return err
	}
	logger.Info("finance summary warmed", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *FinanceWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFinanceSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskFinanceSummaryWarmup))
}
