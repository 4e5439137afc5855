// Package queue hands jobs to worker processes through asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskType 定义任务类型
const (
	TaskTypeJobProcess = "job:process"
)

const defaultQueue = "default"

// JobPayload is the body of a job:process task.
type JobPayload struct {
	JobID      string    `json:"jobId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// StatusStore records what happened to dispatched tasks.
type StatusStore interface {
	SaveTaskStatus(ctx context.Context, status *TaskStatus) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
}

// QueueConfig 定义队列配置
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
	StatusTTL      time.Duration
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	statuses  *RedisStatusStore
	config    *QueueConfig
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg *QueueConfig) *AsynqQueue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		statuses:  NewRedisStatusStore(redisClient, cfg.StatusTTL),
		config:    cfg,
	}
}

// NewJobTask builds the task for jobID. The task id is the job id, so a
// job is queued at most once at a time.
func NewJobTask(jobID string, cfg *QueueConfig, now time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(JobPayload{JobID: jobID, EnqueuedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return asynq.NewTask(TaskTypeJobProcess, payload,
		asynq.TaskID(jobID),
		asynq.Queue(defaultQueue),
		asynq.MaxRetry(cfg.MaxRetries),
		asynq.Timeout(cfg.ProcessTimeout),
	), nil
}

// ParseJobPayload decodes a job:process task body.
func ParseJobPayload(data []byte) (*JobPayload, error) {
	var p JobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if p.JobID == "" {
		return nil, errors.New("invalid task data: missing job id")
	}
	return &p, nil
}

// Dispatch enqueues a job:process task for jobID.
func (q *AsynqQueue) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewJobTask(jobID, q.config, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	status := &TaskStatus{TaskID: jobID, Status: "pending", StartedAt: time.Now().UTC()}
	if err := q.statuses.SaveTaskStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to save initial status: %w", err)
	}
	return nil
}

// GetTaskStatus prefers the status written by workers and falls back to
// asking asynq directly.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	status, err := q.statuses.GetTaskStatus(ctx, taskID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrStatusNotFound) {
		return nil, err
	}

	info, err := q.inspector.GetTaskInfo(defaultQueue, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	return convertAsynqStatus(info), nil
}

func (q *AsynqQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.client.Close()
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Attempt:   info.Retried,
		Error:     info.LastErr,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry:
		status.Status = "retrying"
	case asynq.TaskStateArchived:
		status.Status = "failed"
	}
	return status
}
