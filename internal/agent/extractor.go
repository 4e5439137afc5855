// Package agent turns document bytes into tender extraction results.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/tender-processor/internal/agent/tender"
	"github.com/feichai0017/tender-processor/internal/classify"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNoContent         = errors.New("document has no extractable text")
)

// Request is one document to extract.
type Request struct {
	Filename string
	Language string
	Content  []byte
}

// Extractor is the document understanding capability.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*models.DocumentExtractionResult, error)
}

// RuleExtractor reads text with the processor for the file type and picks
// tender fields with the rule-based parser.
type RuleExtractor struct {
	factory *ProcessorFactory
	logger  logger.Logger
	now     func() time.Time
}

func NewRuleExtractor(factory *ProcessorFactory, log logger.Logger) *RuleExtractor {
	return &RuleExtractor{
		factory: factory,
		logger:  log,
		now:     time.Now,
	}
}

func (e *RuleExtractor) Extract(ctx context.Context, req Request) (*models.DocumentExtractionResult, error) {
	processor, err := e.factory.GetProcessor(req.Filename)
	if err != nil {
		return nil, err
	}

	spans, err := processor.Process(ctx, bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.Filename, err)
	}

	doc := tender.NewDocument(req.Filename, spans)
	if doc.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, req.Filename)
	}

	result := tender.Parse(doc)
	result.DocumentID = uuid.NewString()
	result.DocumentType = classify.Classify(req.Filename)
	result.ExtractionTimestamp = e.now().UTC()

	e.logger.Debug("Document extracted",
		logger.String("filename", req.Filename),
		logger.String("language", req.Language),
		logger.Int("spans", len(spans)),
		logger.Float64("completeness", result.CompletenessScore),
	)
	return result, nil
}
