// Package extraction owns the job lifecycle: submission, concurrency-limited
// per-document extraction, progress tracking and the final merge.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/feichai0017/tender-processor/internal/agent"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/internal/utils/validator"
	"github.com/feichai0017/tender-processor/pkg/jobstore"
	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/storage"
)

type ServiceConfig struct {
	// MaxConcurrent bounds in-flight extraction calls across all jobs.
	MaxConcurrent   int
	Timeout         time.Duration
	Retention       time.Duration
	DefaultLanguage string
}

// SubmitRequest is a validated-on-entry job submission.
type SubmitRequest struct {
	Kind     models.JobKind
	Language string
	Files    []validator.File
	Options  models.JobOptions
}

type Service struct {
	store      jobstore.Store
	blobs      storage.Storage
	invoker    *Invoker
	validator  *validator.SubmissionValidator
	dispatcher Dispatcher
	inline     *inlineDispatcher
	stop       context.CancelFunc
	locks      [64]sync.Mutex
	sem        *semaphore.Weighted
	logger     logger.Logger
	config     *ServiceConfig
	now        func() time.Time
}

type Option func(*Service)

// WithDispatcher replaces in-process execution, e.g. with a task queue.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	store jobstore.Store,
	blobs storage.Storage,
	extractor agent.Extractor,
	v *validator.SubmissionValidator,
	log logger.Logger,
	cfg *ServiceConfig,
	opts ...Option,
) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{
			MaxConcurrent:   3,
			Timeout:         30 * time.Minute,
			Retention:       24 * time.Hour,
			DefaultLanguage: "nl",
		}
	}

	s := &Service{
		store:     store,
		blobs:     blobs,
		invoker:   NewInvoker(extractor, blobs, cfg.Timeout),
		validator: v,
		sem:       semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		logger:    log,
		config:    cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		base, cancel := context.WithCancel(context.Background())
		s.inline = &inlineDispatcher{run: s.Process, logger: log, base: base}
		s.stop = cancel
		s.dispatcher = s.inline
	}
	return s
}

// Submit validates the request, stores the documents, records a queued
// job and dispatches it. A *models.ValidationError means nothing was created.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	if req.Language == "" {
		req.Language = s.config.DefaultLanguage
	}
	if err := s.validator.Validate(req.Kind, req.Language, req.Files); err != nil {
		s.logger.Warn("Submission rejected", logger.Error(err))
		return nil, err
	}

	id := uuid.NewString()
	docs := make([]models.Document, len(req.Files))
	for i, f := range req.Files {
		key := contentKey(id, i, f.Filename)
		if _, err := s.blobs.Store(ctx, bytes.NewReader(f.Content), key); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", f.Filename, err)
		}
		docs[i] = models.Document{
			Filename:    f.Filename,
			Size:        int64(len(f.Content)),
			ContentType: agent.MIMEType(f.Filename),
			ContentKey:  key,
		}
	}

	opts := req.Options
	if req.Kind == models.KindSingle {
		opts = models.JobOptions{}
	}
	job := models.NewJob(id, req.Kind, req.Language, docs, opts, s.now().UTC())
	if err := s.store.Put(ctx, job, 0); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log := logger.FromContext(logger.WithJobID(ctx, id), s.logger)
	log.Info("Job created",
		logger.String("kind", string(job.Kind)),
		logger.Int("documents", len(docs)),
		logger.String("language", job.Language),
	)

	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		log.Error("Failed to dispatch job", logger.Error(err))
		if _, ferr := s.fail(ctx, id, "dispatch failed: "+err.Error()); ferr != nil {
			log.Error("Failed to mark job failed", logger.Error(ferr))
		}
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}
	return job, nil
}

// Status returns an immutable snapshot of the job.
func (s *Service) Status(ctx context.Context, id string) (*models.Job, error) {
	return s.store.Get(ctx, id)
}

// List returns up to limit jobs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Job, error) {
	return s.store.List(ctx, limit)
}

// Cleanup removes finished jobs and stored documents older than the
// retention period.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	threshold := s.now().Add(-s.config.Retention)

	jobs, err := s.store.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	removed := 0
	for _, job := range jobs {
		if !job.Status.Terminal() || !job.UpdatedAt.Before(threshold) {
			continue
		}
		if err := s.store.Delete(ctx, job.ID); err != nil {
			return removed, fmt.Errorf("failed to delete job %s: %w", job.ID, err)
		}
		removed++
	}

	if err := s.blobs.CleanupBefore(ctx, threshold); err != nil {
		return removed, fmt.Errorf("failed to cleanup storage: %w", err)
	}

	s.logger.Info("Completed jobs cleanup",
		logger.Time("threshold", threshold),
		logger.Int("removed", removed),
	)
	return removed, nil
}

// Resume dispatches every job that is not finished yet: queued jobs that
// were never run and processing jobs left with pending documents.
func (s *Service) Resume(ctx context.Context) (int, error) {
	jobs, err := s.store.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	resumed := 0
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
			return resumed, fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
		}
		resumed++
	}
	if resumed > 0 {
		s.logger.Info("Resumed unfinished jobs", logger.Int("count", resumed))
	}
	return resumed, nil
}

// Shutdown cancels inline job runs and waits for them to return. Documents
// still pending stay pending for Resume.
func (s *Service) Shutdown() {
	if s.inline == nil {
		return
	}
	s.stop()
	s.inline.wait()
}

// Wait blocks until inline job runs started so far have finished.
func (s *Service) Wait() {
	if s.inline != nil {
		s.inline.wait()
	}
}

// contentKey keeps every document of a job under jobs/<id>/.
func contentKey(jobID string, idx int, filename string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, filepath.Base(filename))
	return fmt.Sprintf("jobs/%s/%d_%s", jobID, idx, name)
}
