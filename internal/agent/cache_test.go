package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

type countingExtractor struct {
	calls atomic.Int32
}

func (c *countingExtractor) Extract(_ context.Context, req Request) (*models.DocumentExtractionResult, error) {
	c.calls.Add(1)
	return &models.DocumentExtractionResult{
		DocumentID:        "orig",
		Filename:          req.Filename,
		DocumentType:      models.DocUnknown,
		ProjectTitle:      "Onderhoud bruggen",
		CompletenessScore: 0.4,
		SourceAttribution: map[string]models.SourceRef{
			"project_title": {SourceFilename: req.Filename, PageNumber: 1, CharEnd: 17, ConfidenceScore: 0.9},
		},
	}, nil
}

func newCache(t *testing.T, next Extractor) (*CachedExtractor, *miniredis.Miniredis, *logger.TestLogger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	log := logger.NewTestLogger()
	return NewCachedExtractor(next, client, time.Hour, log), mr, log
}

func TestCachedExtractor_HitRelabels(t *testing.T) {
	inner := &countingExtractor{}
	c, mr, _ := newCache(t, inner)
	ctx := context.Background()
	content := []byte("same bytes")

	first, err := c.Extract(ctx, Request{Filename: "scan1.pdf", Language: "nl", Content: content})
	require.NoError(t, err)
	assert.Equal(t, "scan1.pdf", first.Filename)
	assert.True(t, mr.Exists(CacheKey(content, "nl")))

	second, err := c.Extract(ctx, Request{Filename: "bestek_v2.pdf", Language: "nl", Content: content})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "bestek_v2.pdf", second.Filename)
	assert.Equal(t, models.DocTechnicalSpecifications, second.DocumentType)
	assert.NotEqual(t, "orig", second.DocumentID)
	assert.Equal(t, "bestek_v2.pdf", second.SourceAttribution["project_title"].SourceFilename)
	assert.Equal(t, "Onderhoud bruggen", second.ProjectTitle)

	// another language is another entry
	_, err = c.Extract(ctx, Request{Filename: "scan1.pdf", Language: "en", Content: content})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedExtractor_TTL(t *testing.T) {
	c, mr, _ := newCache(t, &countingExtractor{})
	content := []byte("x")
	_, err := c.Extract(context.Background(), Request{Filename: "a.pdf", Language: "nl", Content: content})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(CacheKey(content, "nl")))
}

func TestCachedExtractor_RedisDownStillExtracts(t *testing.T) {
	inner := &countingExtractor{}
	c, mr, log := newCache(t, inner)
	mr.Close()

	res, err := c.Extract(context.Background(), Request{Filename: "a.pdf", Language: "nl", Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "Onderhoud bruggen", res.ProjectTitle)
	assert.Len(t, log.Messages("WARN"), 2)
}

func TestCachedExtractor_CorruptEntryIsDropped(t *testing.T) {
	inner := &countingExtractor{}
	c, mr, _ := newCache(t, inner)
	content := []byte("x")
	require.NoError(t, mr.Set(CacheKey(content, "nl"), "{not json"))

	_, err := c.Extract(context.Background(), Request{Filename: "a.pdf", Language: "nl", Content: content})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
