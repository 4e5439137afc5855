package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStatusNotFound = errors.New("task status not found")

// RedisStatusStore keeps task statuses under task_status:<id>.
type RedisStatusStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusStore{redis: client, ttl: ttl}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// SaveTaskStatus 保存任务状态
func (s *RedisStatusStore) SaveTaskStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKey(status.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *RedisStatusStore) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}
