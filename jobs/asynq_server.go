package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
)

// Worker hosts the asynq consumer and its cron scheduler. Handlers and
// schedules are registered before Run; registration after Run is not
// supported.
type Worker struct {
	redisOpts asynq.RedisClientOpt
	mux       *asynq.ServeMux
	logger    *slog.Logger
	schedules []schedule
}

type schedule struct {
	cron string
	task *asynq.Task
	opts []asynq.Option
}

// NewWorker prepares an empty worker bound to the given redis connection.
func NewWorker(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Worker {
	return &Worker{
		redisOpts: redisOpts,
		mux:       asynq.NewServeMux(),
		logger:    logger,
	}
}

// Handle registers a handler for a task type.
func (w *Worker) Handle(taskType string, handler asynq.HandlerFunc) {
	if taskType == "" || handler == nil {
		return
	}
	w.mux.HandleFunc(taskType, handler)
}

// Schedule enqueues the task on the given cron expression (UTC).
func (w *Worker) Schedule(cron string, task *asynq.Task, opts ...asynq.Option) {
	if cron == "" || task == nil {
		return
	}
	w.schedules = append(w.schedules, schedule{cron: cron, task: task, opts: opts})
}

// Run processes jobs until the context is cancelled. The maintenance queue is
// drained at lower priority than the default queue so cleanup work never
// starves cache warmups.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}

	srv := asynq.NewServer(w.redisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault:     3,
			QueueMaintenance: 1,
		},
	})

	var scheduler *asynq.Scheduler
	if len(w.schedules) > 0 {
		scheduler = asynq.NewScheduler(w.redisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, s := range w.schedules {
			entryID, err := scheduler.Register(s.cron, s.task, s.opts...)
			if err != nil {
				return err
			}
			w.logger.Info("cron registered",
				slog.String("entry", entryID),
				slog.String("task", s.task.Type()),
				slog.String("cron", s.cron))
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(w.mux)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()
	return runErr
}

// Client enqueues one-off jobs from the HTTP process.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq producer.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueFinanceWarmup queues a finance summary warmup.
func (c *Client) EnqueueFinanceWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	task, err := NewFinanceWarmupTask(reason)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueIdempotencyCleanup queues an off-schedule idempotency key sweep.
func (c *Client) EnqueueIdempotencyCleanup(ctx context.Context, olderThanHours int) (*asynq.TaskInfo, error) {
	task, err := NewIdempotencyCleanupTask(olderThanHours)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueMaintenance))
}

// Close releases producer resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler reports queue depth for operational checks.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs the jobs observability handler.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueStatus struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	statuses := make([]queueStatus, 0, 2)
	for _, q := range []string{QueueDefault, QueueMaintenance} {
		status := queueStatus{Queue: q}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(q)
			if err != nil {
				h.logger.Warn("jobs health", slog.String("queue", q), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			status.Pending = info.Pending
			status.Active = info.Active
			status.Retry = info.Retry
		}
		statuses = append(statuses, status)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]queueStatus{"queues": statuses})
}
