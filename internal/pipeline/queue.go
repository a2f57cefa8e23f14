package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

// TaskTypeProductionRun is the asynq task type carrying one queued run.
const TaskTypeProductionRun = "production:run"

const (
	runTaskTimeout   = 30 * time.Minute
	runTaskRetention = 24 * time.Hour
)

type runTaskPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// Queue hands production runs to the worker process over the shared Redis.
type Queue struct {
	client *asynq.Client
}

// NewQueue connects an enqueue-only asynq client.
func NewQueue(cfg config.RedisConfig) (*Queue, error) {
	opt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// EnqueueProductionRun schedules one run for execution. Runs are never
// retried blindly: a failed run refunds and records its error instead.
func (q *Queue) EnqueueProductionRun(ctx context.Context, runID uuid.UUID) error {
	payload, err := json.Marshal(runTaskPayload{RunID: runID})
	if err != nil {
		return fmt.Errorf("encode run payload: %w", err)
	}
	task := asynq.NewTask(TaskTypeProductionRun, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(runTaskTimeout),
		asynq.Retention(runTaskRetention),
	)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}
	return nil
}

// Close releases the underlying asynq connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker consumes production run tasks and drives them through the
// orchestrator.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logg   *logger.Logger
}

// NewWorker builds the asynq server bound to the run handler.
func NewWorker(cfg config.RedisConfig, runs Service, logg *logger.Logger) (*Worker, error) {
	if runs == nil {
		return nil, fmt.Errorf("run service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	opt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProductionRun, func(ctx context.Context, task *asynq.Task) error {
		var payload runTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode run payload: %w", err)
		}
		ctx = logg.WithRunID(ctx, payload.RunID.String())
		logg.Info(ctx, "production run started")
		if err := runs.ExecuteRun(ctx, payload.RunID); err != nil {
			logg.Error(ctx, "production run failed", err)
			return err
		}
		return nil
	})

	return &Worker{server: server, mux: mux, logg: logg}, nil
}

// Run blocks serving tasks until Shutdown is called.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown drains in-flight tasks and stops the server.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func redisConnOpt(cfg config.RedisConfig) (asynq.RedisConnOpt, error) {
	if cfg.URL != "" {
		opt, err := asynq.ParseRedisURI(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opt, nil
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis url or address is required")
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
