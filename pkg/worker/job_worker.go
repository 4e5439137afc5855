package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/queue"
)

// JobRunner runs one job to a terminal state.
type JobRunner interface {
	Process(ctx context.Context, jobID string) error
}

var _ Worker = (*JobWorker)(nil)

// JobWorker consumes job:process tasks.
type JobWorker struct {
	BaseWorker
	runner   JobRunner
	statuses queue.StatusStore
}

func NewJobWorker(cfg *Config, runner JobRunner, statuses queue.StatusStore, log logger.Logger) *JobWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{"default": 1}
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &JobWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		runner:   runner,
		statuses: statuses,
	}
	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeJobProcess, w.handleJobProcess)
	return w
}

func (w *JobWorker) handleJobProcess(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseJobPayload(t.Payload())
	if err != nil {
		w.logger.Error("Invalid job task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	log := logger.FromContext(logger.WithJobID(ctx, payload.JobID), w.logger)
	log.Info("Processing job task", logger.Int("attempt", attempt))

	status := &queue.TaskStatus{
		TaskID:    payload.JobID,
		Status:    "running",
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}
	w.save(ctx, status)

	if err := w.runner.Process(ctx, payload.JobID); err != nil {
		status.Status = "retrying"
		status.Error = err.Error()
		status.FinishedAt = time.Now().UTC()
		w.save(ctx, status)
		log.Error("Job task failed", logger.Error(err))
		return err
	}

	status.Status = "completed"
	status.FinishedAt = time.Now().UTC()
	w.save(ctx, status)
	return nil
}

func (w *JobWorker) save(ctx context.Context, status *queue.TaskStatus) {
	if err := w.statuses.SaveTaskStatus(ctx, status); err != nil {
		w.logger.Warn("Failed to write task status",
			logger.String("taskId", status.TaskID),
			logger.Error(err),
		)
	}
}

func (w *JobWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
