package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/tender-processor/internal/classify"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// CachedExtractor memoizes results in redis by content hash and language.
// Cache failures are logged and never fail an extraction.
type CachedExtractor struct {
	next   Extractor
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedExtractor(next Extractor, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedExtractor {
	return &CachedExtractor{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// CacheKey is extraction:<sha256 of content>:<language>.
func CacheKey(content []byte, language string) string {
	sum := sha256.Sum256(content)
	return "extraction:" + hex.EncodeToString(sum[:]) + ":" + language
}

func (c *CachedExtractor) Extract(ctx context.Context, req Request) (*models.DocumentExtractionResult, error) {
	key := CacheKey(req.Content, req.Language)

	if cached, ok := c.lookup(ctx, key); ok {
		c.logger.Debug("Extraction cache hit",
			logger.String("filename", req.Filename),
			logger.String("key", key),
		)
		return relabel(cached, req.Filename), nil
	}

	result, err := c.next.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode extraction for cache", logger.Error(err))
		return result, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write extraction cache",
			logger.String("key", key),
			logger.Error(err),
		)
	}
	return result, nil
}

func (c *CachedExtractor) lookup(ctx context.Context, key string) (*models.DocumentExtractionResult, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read extraction cache",
				logger.String("key", key),
				logger.Error(err),
			)
		}
		return nil, false
	}

	var result models.DocumentExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Dropping undecodable cache entry",
			logger.String("key", key),
			logger.Error(err),
		)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return &result, true
}

// relabel makes a cached result look like it was extracted from filename.
func relabel(r *models.DocumentExtractionResult, filename string) *models.DocumentExtractionResult {
	r.DocumentID = uuid.NewString()
	r.Filename = filename
	r.DocumentType = classify.Classify(filename)
	for field, ref := range r.SourceAttribution {
		ref.SourceFilename = filename
		r.SourceAttribution[field] = ref
	}
	return r
}
