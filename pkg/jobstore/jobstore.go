// Package jobstore persists job records with optimistic concurrency.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// StoreType 存储后端类型
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Store 任务存储接口
type Store interface {
	// Get returns a private copy of the job or models.ErrJobNotFound.
	Get(ctx context.Context, id string) (*models.Job, error)
	// Put writes job only if the stored version equals expectedVersion
	// (0 for a new job). On success job.Version is expectedVersion+1.
	Put(ctx context.Context, job *models.Job, expectedVersion int64) error
	// List returns up to limit jobs, newest first.
	List(ctx context.Context, limit int) ([]*models.Job, error)
	Delete(ctx context.Context, id string) error
}

const (
	minBackoff = 2 * time.Millisecond
	maxBackoff = 100 * time.Millisecond
)

// Update applies mutate to the latest stored job and writes it back.
// Version conflicts are retried with jittered backoff until ctx ends.
// mutate may return false to skip the write.
func Update(ctx context.Context, s Store, id string, mutate func(*models.Job) (bool, error)) (*models.Job, error) {
	backoff := minBackoff
	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := job.Version
		changed, err := mutate(job)
		if err != nil {
			return nil, err
		}
		if !changed {
			return job, nil
		}
		err = s.Put(ctx, job, expected)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, err
		}

		wait := backoff/2 + rand.N(backoff/2+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to update job %s: %w: %w", id, models.ErrVersionConflict, ctx.Err())
		case <-time.After(wait):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Options configures NewStore.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	// TTL bounds how long a job record is retained; zero keeps it forever.
	TTL time.Duration
}

// NewStore 创建存储实例的工厂方法
func NewStore(storeType StoreType, opts Options, log logger.Logger) (Store, error) {
	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStoreFromOptions(opts, log)
	default:
		return nil, fmt.Errorf("unsupported job store type: %s", storeType)
	}
}
