// Package export streams finished jobs as newline-delimited JSON records.
package export

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/gzip"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/converters"
	"github.com/feichai0017/tender-processor/pkg/jobstore"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// Mode selects which result records a batch export carries.
type Mode string

const (
	ModeMergedOnly          Mode = "merged_only"
	ModeMergedAndIndividual Mode = "merged_and_individual"
)

// ParseMode accepts "" as merged_and_individual.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMergedAndIndividual:
		return ModeMergedAndIndividual, nil
	case ModeMergedOnly:
		return ModeMergedOnly, nil
	}
	return "", &models.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown export mode %q", s)}
}

type Options struct {
	Mode Mode
	// IncludeMetadata adds job_context to every result record.
	IncludeMetadata bool
	// Compress gzips the whole stream.
	Compress bool
}

type Streamer struct {
	store  jobstore.Store
	logger logger.Logger
}

func NewStreamer(store jobstore.Store, log logger.Logger) *Streamer {
	return &Streamer{store: store, logger: log}
}

// Export is a ready-to-write export of one job snapshot.
type Export struct {
	Filename    string
	ContentType string
	Records     iter.Seq[converters.Record]

	compress bool
}

// Open checks the job can be exported and prepares its record sequence.
// Nothing is serialized until the records are consumed.
func (s *Streamer) Open(ctx context.Context, jobID string, opts Options) (*Export, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", models.ErrNotReady, jobID, job.Status)
	}
	if len(job.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNoResults, jobID)
	}

	exp := &Export{
		Filename:    "tender_extraction_" + job.ID + ".jsonl",
		ContentType: "application/x-ndjson",
		Records:     Records(job, opts),
		compress:    opts.Compress,
	}
	if opts.Compress {
		exp.Filename += ".gz"
		exp.ContentType = "application/gzip"
	}
	return exp, nil
}

// Records yields the header, then the result records selected by opts.
// Batches without a merged record always fall back to per-document records.
func Records(job *models.Job, opts Options) iter.Seq[converters.Record] {
	conv := converters.NewRecordConverter(opts.IncludeMetadata)
	return func(yield func(converters.Record) bool) {
		if !yield(conv.Header(job)) {
			return
		}
		if job.Kind == models.KindBatch && job.Merged != nil {
			if !yield(conv.Merged(job)) {
				return
			}
			if opts.Mode == ModeMergedOnly {
				return
			}
		}
		for _, slot := range job.Results {
			if !yield(conv.Document(job, slot)) {
				return
			}
		}
	}
}

// WriteTo serializes every record to w, gzipping the stream as a whole
// when compression was requested.
func (e *Export) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	var out io.Writer = cw
	var zw *gzip.Writer
	if e.compress {
		zw = gzip.NewWriter(cw)
		out = zw
	}

	jw := converters.NewJSONLWriter(out)
	for r := range e.Records {
		if err := jw.Write(r); err != nil {
			return cw.n, err
		}
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return cw.n, fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
