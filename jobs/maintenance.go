package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/shared"
)

// MaintenanceJob prunes stale idempotency keys and expired session rows.
type MaintenanceJob struct {
	Pool        *pgxpool.Pool
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
}

// NewMaintenanceJob wires dependencies for the maintenance handlers.
func NewMaintenanceJob(pool *pgxpool.Pool, store *shared.IdempotencyStore, logger *slog.Logger) *MaintenanceJob {
	return &MaintenanceJob{Pool: pool, Idempotency: store, Logger: logger}
}

// HandleIdempotencyCleanup processes idempotency key cleanup tasks.
func (j *MaintenanceJob) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Idempotency == nil {
		return errors.New("maintenance: idempotency store not configured")
	}
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThanHours <= 0 {
		payload.OlderThanHours = 24
	}

	olderThan := time.Duration(payload.OlderThanHours) * time.Hour
	if err := j.Idempotency.Cleanup(ctx, olderThan); err != nil {
		j.logger(TaskIdempotencyCleanup).Error("cleanup idempotency keys", slog.Any("error", err))
		return err
	}
	j.logger(TaskIdempotencyCleanup).Info("idempotency keys pruned", slog.Int("older_than_hours", payload.OlderThanHours))
	return nil
}

// HandleSessionCleanup processes expired session cleanup tasks.
func (j *MaintenanceJob) HandleSessionCleanup(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("maintenance: pool not configured")
	}
	tag, err := j.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		j.logger(TaskSessionCleanup).Error("cleanup sessions", slog.Any("error", err))
		return err
	}
	j.logger(TaskSessionCleanup).Info("expired sessions pruned", slog.Int64("rows", tag.RowsAffected()))
	return nil
}

func (j *MaintenanceJob) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}
