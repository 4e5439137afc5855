package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/tender-processor/internal/agent"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/storage"
)

// Outcome is the result of one extraction call: exactly one of Result and
// Err is set.
type Outcome struct {
	Result *models.DocumentExtractionResult
	Err    *models.ExtractionError
}

// Invoker calls the extraction capability for one stored document and
// normalizes every failure into an ExtractionError. It never touches jobs.
type Invoker struct {
	extractor agent.Extractor
	blobs     storage.Storage
	timeout   time.Duration
}

func NewInvoker(extractor agent.Extractor, blobs storage.Storage, timeout time.Duration) *Invoker {
	return &Invoker{extractor: extractor, blobs: blobs, timeout: timeout}
}

func (i *Invoker) Invoke(ctx context.Context, doc models.Document, language string) Outcome {
	content, err := storage.ReadAll(ctx, i.blobs, doc.ContentKey)
	if err != nil {
		return failure(doc, models.ExtractionUpstreamFailure, fmt.Sprintf("failed to load content: %v", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	type reply struct {
		result *models.DocumentExtractionResult
		err    error
	}
	// buffered so a call that outlives its deadline can still deliver and exit
	done := make(chan reply, 1)
	go func() {
		r, err := i.extractor.Extract(callCtx, agent.Request{
			Filename: doc.Filename,
			Language: language,
			Content:  content,
		})
		done <- reply{r, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return failure(doc, errorKind(r.err), r.err.Error())
		}
		if err := checkResult(r.result); err != nil {
			return failure(doc, models.ExtractionUpstreamFailure, "malformed extraction result: "+err.Error())
		}
		r.result.Filename = doc.Filename
		return Outcome{Result: r.result}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return failure(doc, models.ExtractionUpstreamFailure, "extraction cancelled")
		}
		return failure(doc, models.ExtractionTimeout, fmt.Sprintf("no result within %s", i.timeout))
	}
}

func failure(doc models.Document, kind models.ExtractionErrorKind, msg string) Outcome {
	return Outcome{Err: &models.ExtractionError{Kind: kind, Filename: doc.Filename, Message: msg}}
}

func errorKind(err error) models.ExtractionErrorKind {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, agent.ErrUnsupportedFormat), errors.Is(err, agent.ErrNoContent):
		return models.ExtractionUnsupportedContent
	case errors.Is(err, context.DeadlineExceeded):
		return models.ExtractionTimeout
	case errors.As(err, &verr):
		return models.ExtractionValidation
	}
	return models.ExtractionUpstreamFailure
}

// checkResult rejects results the merge engine could not use.
func checkResult(r *models.DocumentExtractionResult) error {
	if r == nil {
		return errors.New("no result")
	}
	if r.EstimatedValue != nil && *r.EstimatedValue < 0 {
		return fmt.Errorf("negative estimated value %v", *r.EstimatedValue)
	}
	if r.CompletenessScore < 0 || r.CompletenessScore > 1 {
		return fmt.Errorf("completeness score %v outside [0,1]", r.CompletenessScore)
	}
	for _, k := range models.SortedKeys(r.ConfidenceScores) {
		if s := r.ConfidenceScores[k]; s < 0 || s > 1 {
			return fmt.Errorf("confidence %v for %s outside [0,1]", s, k)
		}
	}
	for _, k := range models.SortedKeys(r.AssessmentCriteria) {
		if w := r.AssessmentCriteria[k]; w < 0 || w > 1 {
			return fmt.Errorf("weight %v for %s outside [0,1]", w, k)
		}
	}
	return nil
}
