package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/tender-processor/config"
	"github.com/feichai0017/tender-processor/internal/agent"
	"github.com/feichai0017/tender-processor/internal/utils/validator"
	"github.com/feichai0017/tender-processor/pkg/jobstore"
	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/queue"
	"github.com/feichai0017/tender-processor/pkg/storage"
)

// Components is everything a process needs to serve or run jobs.
type Components struct {
	Service *Service
	Store   jobstore.Store
	// Queue is nil in inline mode.
	Queue *queue.AsynqQueue
	// Redis is nil when redis is unreachable.
	Redis   *redis.Client
	factory *agent.ProcessorFactory
	logger  logger.Logger
}

// Build wires the extraction service from configuration.
func Build(ctx context.Context, c *config.Config, log logger.Logger) (*Components, error) {
	comp := &Components{logger: log}

	// 初始化任务存储
	store, err := jobstore.NewStore(jobstore.StoreType(c.Jobs.Store), jobstore.Options{
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		KeyPrefix:     c.Jobs.KeyPrefix,
		// backstop for the retention sweep
		TTL: 2 * c.Jobs.Retention,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}
	comp.Store = store

	// 初始化存储
	blobs, err := storage.NewStorage(storage.StorageType(c.Storage.Type), c, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 初始化处理器工厂
	factory, err := agent.NewProcessorFactory(ctx, c.Extraction.OCR, &c.Textract, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor factory: %w", err)
	}
	comp.factory = factory

	comp.Redis = connectRedis(ctx, c, log)

	var extractor agent.Extractor = agent.NewRuleExtractor(factory, log)
	if c.Extraction.CacheEnabled && comp.Redis != nil {
		extractor = agent.NewCachedExtractor(extractor, comp.Redis, c.Extraction.CacheTTL, log)
	}

	v := validator.NewSubmissionValidator(log, &validator.ValidatorConfig{
		MaxFileSize:       c.Limits.MaxFileSize,
		MaxBatchFiles:     c.Limits.MaxBatchFiles,
		Languages:         c.Limits.Languages,
		AllowedExtensions: c.Limits.AllowedExtensions,
	})

	var opts []Option
	if c.Queue.Mode == "asynq" {
		comp.Queue = queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:      c.Redis.Addr,
			RedisPassword:  c.Redis.Password,
			RedisDB:        c.Redis.DB,
			MaxRetries:     c.Queue.MaxRetries,
			ProcessTimeout: c.Queue.Timeout,
			StatusTTL:      c.Jobs.Retention,
		})
		opts = append(opts, WithDispatcher(comp.Queue))
	}

	comp.Service = NewService(store, blobs, extractor, v, log, &ServiceConfig{
		MaxConcurrent:   c.Extraction.MaxConcurrent,
		Timeout:         c.Extraction.Timeout,
		Retention:       c.Jobs.Retention,
		DefaultLanguage: c.Limits.DefaultLanguage,
	}, opts...)

	if comp.Queue == nil {
		// nothing else will pick up jobs an earlier process left unfinished
		if _, err := comp.Service.Resume(ctx); err != nil {
			return nil, fmt.Errorf("failed to resume jobs: %w", err)
		}
	}

	log.Info("Extraction service ready",
		logger.String("queueMode", c.Queue.Mode),
		logger.String("jobStore", c.Jobs.Store),
		logger.String("storage", c.Storage.Type),
		logger.Bool("cache", c.Extraction.CacheEnabled && comp.Redis != nil),
	)
	return comp, nil
}

// RunCleanup sweeps expired jobs every interval until ctx ends.
func (c *Components) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Service.Cleanup(ctx); err != nil {
				c.logger.Error("Cleanup failed", logger.Error(err))
			}
		}
	}
}

// Close stops inline jobs and releases connections.
func (c *Components) Close() {
	c.Service.Shutdown()
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			c.logger.Warn("Failed to close queue", logger.Error(err))
		}
	}
	if closer, ok := c.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("Failed to close job store", logger.Error(err))
		}
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
	if err := c.factory.Close(); err != nil {
		c.logger.Warn("Failed to close processors", logger.Error(err))
	}
}

// connectRedis returns nil when redis does not answer; the cache and the
// rate limiter are then disabled.
func connectRedis(ctx context.Context, c *config.Config, log logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, cache and rate limiting disabled",
			logger.String("addr", c.Redis.Addr),
			logger.Error(err),
		)
		client.Close()
		return nil
	}
	return client
}
