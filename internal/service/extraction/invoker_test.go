package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/internal/agent"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/storage/memory"
)

type extractorFunc func(ctx context.Context, req agent.Request) (*models.DocumentExtractionResult, error)

func (f extractorFunc) Extract(ctx context.Context, req agent.Request) (*models.DocumentExtractionResult, error) {
	return f(ctx, req)
}

func storedDoc(t *testing.T, blobs *memory.MemoryStorage, name string) models.Document {
	t.Helper()
	key := "jobs/x/0_" + name
	_, err := blobs.Store(context.Background(), bytes.NewReader([]byte("inhoud")), key)
	require.NoError(t, err)
	return models.Document{Filename: name, ContentKey: key}
}

func TestInvoke_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ExtractionErrorKind
	}{
		{"unsupported", fmt.Errorf("wrap: %w", agent.ErrUnsupportedFormat), models.ExtractionUnsupportedContent},
		{"no content", agent.ErrNoContent, models.ExtractionUnsupportedContent},
		{"deadline", fmt.Errorf("textract: %w", context.DeadlineExceeded), models.ExtractionTimeout},
		{"validation", &models.ValidationError{Field: "language", Message: "nope"}, models.ExtractionValidation},
		{"other", errors.New("503 from upstream"), models.ExtractionUpstreamFailure},
	}

	blobs := memory.New()
	doc := storedDoc(t, blobs, "a.pdf")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvoker(extractorFunc(func(context.Context, agent.Request) (*models.DocumentExtractionResult, error) {
				return nil, tt.err
			}), blobs, time.Second)

			out := inv.Invoke(context.Background(), doc, "nl")
			assert.Nil(t, out.Result)
			require.NotNil(t, out.Err)
			assert.Equal(t, tt.want, out.Err.Kind)
			assert.Equal(t, "a.pdf", out.Err.Filename)
		})
	}
}

func TestInvoke_PassesContentAndLanguage(t *testing.T) {
	blobs := memory.New()
	doc := storedDoc(t, blobs, "bestek.pdf")

	var got agent.Request
	inv := NewInvoker(extractorFunc(func(_ context.Context, req agent.Request) (*models.DocumentExtractionResult, error) {
		got = req
		return &models.DocumentExtractionResult{Filename: "other-name.pdf"}, nil
	}), blobs, time.Second)

	out := inv.Invoke(context.Background(), doc, "de")
	require.Nil(t, out.Err)
	assert.Equal(t, "bestek.pdf", out.Result.Filename)
	assert.Equal(t, "de", got.Language)
	assert.Equal(t, []byte("inhoud"), got.Content)
}

func TestInvoke_MalformedAndMissing(t *testing.T) {
	blobs := memory.New()
	doc := storedDoc(t, blobs, "a.pdf")

	inv := NewInvoker(extractorFunc(func(context.Context, agent.Request) (*models.DocumentExtractionResult, error) {
		return &models.DocumentExtractionResult{ConfidenceScores: map[string]float64{"x": 1.5}}, nil
	}), blobs, time.Second)
	out := inv.Invoke(context.Background(), doc, "nl")
	require.NotNil(t, out.Err)
	assert.Equal(t, models.ExtractionUpstreamFailure, out.Err.Kind)
	assert.Contains(t, out.Err.Message, "malformed")

	inv = NewInvoker(extractorFunc(func(context.Context, agent.Request) (*models.DocumentExtractionResult, error) {
		return nil, nil
	}), blobs, time.Second)
	out = inv.Invoke(context.Background(), doc, "nl")
	require.NotNil(t, out.Err)

	out = inv.Invoke(context.Background(), models.Document{Filename: "weg.pdf", ContentKey: "jobs/x/missing"}, "nl")
	require.NotNil(t, out.Err)
	assert.Equal(t, models.ExtractionUpstreamFailure, out.Err.Kind)
}

func TestInvoke_Timeout(t *testing.T) {
	blobs := memory.New()
	doc := storedDoc(t, blobs, "a.pdf")

	inv := NewInvoker(extractorFunc(func(ctx context.Context, _ agent.Request) (*models.DocumentExtractionResult, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return &models.DocumentExtractionResult{}, nil
	}), blobs, 20*time.Millisecond)

	start := time.Now()
	out := inv.Invoke(context.Background(), doc, "nl")
	require.NotNil(t, out.Err)
	assert.Equal(t, models.ExtractionTimeout, out.Err.Kind)
	assert.Less(t, time.Since(start), time.Second)
}
