package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

const defaultKeyPrefix = "tender"

// RedisStore stores each job as JSON under <prefix>:job:<id> and keeps a
// sorted set <prefix>:jobs:index scored by creation time for listing.
// Put uses WATCH/MULTI so concurrent writers see ErrVersionConflict.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logger: log}
}

// NewRedisStoreFromOptions dials redis and verifies the connection.
func NewRedisStoreFromOptions(opts Options, log logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Job store connected",
		logger.String("addr", opts.RedisAddr),
		logger.Int("db", opts.RedisDB),
	)
	return NewRedisStore(client, opts.KeyPrefix, opts.TTL, log), nil
}

func (s *RedisStore) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":jobs:index"
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job from redis: %w", err)
	}
	return decodeJob(data)
}

func (s *RedisStore) Put(ctx context.Context, job *models.Job, expectedVersion int64) error {
	key := s.jobKey(job.ID)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return models.ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("failed to read job: %w", err)
		default:
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(current, &stored); err != nil {
				return fmt.Errorf("failed to unmarshal stored job: %w", err)
			}
			if stored.Version != expectedVersion {
				return models.ErrVersionConflict
			}
		}

		job.Version = expectedVersion + 1
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{
				Score:  float64(job.CreatedAt.UnixMilli()),
				Member: job.ID,
			})
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if err == nil {
		return nil
	}
	job.Version = expectedVersion
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, models.ErrVersionConflict) {
		return models.ErrVersionConflict
	}
	s.logger.Error("Failed to save job",
		logger.String("jobId", job.ID),
		logger.Error(err),
	)
	return fmt.Errorf("failed to save job: %w", err)
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		job, err := decodeJob([]byte(raw))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			s.logger.Warn("Failed to prune job index", logger.Error(err))
		}
	}
	return jobs, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.jobKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
