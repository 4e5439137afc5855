package extraction

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/tender-processor/internal/merge"
	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/jobstore"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// Process runs a dispatched job to a terminal state. Running it again for a
// job that is still processing only runs the slots that are still pending,
// so a crashed worker's retry picks up where it left off.
//
// A non-nil error means the job was left in processing (store failure or
// ctx cancelled); per-document failures are recorded, not returned.
func (s *Service) Process(ctx context.Context, jobID string) error {
	log := logger.FromContext(logger.WithJobID(ctx, jobID), s.logger)

	job, err := s.update(ctx, jobID, func(j *models.Job) (bool, error) {
		if !j.Status.CanTransition(models.StatusProcessing) {
			return false, nil
		}
		j.Status = models.StatusProcessing
		j.Progress = models.Progress{Total: len(j.Documents), Processed: 0}
		j.UpdatedAt = s.now().UTC()
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		log.Debug("Job already finished", logger.String("status", string(job.Status)))
		return nil
	}
	log.Info("Job processing", logger.Int("documents", len(job.Documents)))

	g, gctx := errgroup.WithContext(ctx)
	for idx, slot := range job.Results {
		if slot.Status != models.SlotPending {
			continue
		}
		doc := job.Documents[idx]
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			outcome := s.invoker.Invoke(gctx, doc, job.Language)
			s.sem.Release(1)

			if err := gctx.Err(); err != nil {
				return err
			}
			if outcome.Err != nil {
				log.Warn("Document extraction failed",
					logger.String("filename", doc.Filename),
					logger.String("kind", string(outcome.Err.Kind)),
					logger.String("reason", outcome.Err.Message),
				)
			}
			return s.record(gctx, jobID, idx, outcome)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("job %s interrupted: %w", jobID, err)
	}

	job, err = s.finalize(ctx, jobID)
	if err != nil {
		return err
	}
	log.Info("Job finished",
		logger.String("status", string(job.Status)),
		logger.Int("succeeded", len(job.Succeeded())),
		logger.Int("failed", job.FailedCount()),
	)
	return nil
}

// record fills one slot and advances progress in a single write, so no
// snapshot shows a count without its slot. A slot that is no longer pending
// is left alone.
func (s *Service) record(ctx context.Context, jobID string, idx int, outcome Outcome) error {
	_, err := s.update(ctx, jobID, func(j *models.Job) (bool, error) {
		if j.Status != models.StatusProcessing || idx >= len(j.Results) {
			return false, nil
		}
		slot := &j.Results[idx]
		if slot.Status != models.SlotPending {
			return false, nil
		}
		if outcome.Err != nil {
			slot.Status = models.SlotFailed
			slot.Error = outcome.Err
		} else {
			slot.Status = models.SlotSucceeded
			slot.Result = outcome.Result
		}
		j.Progress.Processed++
		j.UpdatedAt = s.now().UTC()
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record result for document %d: %w", idx, err)
	}
	return nil
}

// finalize moves a fully processed job to completed or failed, merging the
// successful results when the job asks for it.
func (s *Service) finalize(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.update(ctx, jobID, func(j *models.Job) (bool, error) {
		if !j.Status.CanTransition(models.StatusCompleted) {
			return false, nil
		}
		if j.Progress.Processed != j.Progress.Total {
			return false, fmt.Errorf("job %s has %d of %d documents processed", j.ID, j.Progress.Processed, j.Progress.Total)
		}

		j.UpdatedAt = s.now().UTC()
		j.Merged = nil
		succeeded := j.Succeeded()
		if len(succeeded) == 0 {
			j.Status = models.StatusFailed
			j.Error = allFailedReason(j)
			return true, nil
		}

		if j.WantsMerge() && len(succeeded) >= 2 {
			merged, err := merge.Merge(succeeded, merge.Options{ExtractRelationships: j.Options.ExtractRelationships})
			if err != nil {
				var merr *models.MergeError
				if !errors.As(err, &merr) {
					return false, err
				}
				j.Status = models.StatusFailed
				j.Error = merr.Error()
				return true, nil
			}
			j.Merged = merged
		}
		j.Status = models.StatusCompleted
		j.Error = ""
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize job %s: %w", jobID, err)
	}
	return job, nil
}

// fail moves a non-terminal job straight to failed.
func (s *Service) fail(ctx context.Context, jobID, reason string) (*models.Job, error) {
	return s.update(ctx, jobID, func(j *models.Job) (bool, error) {
		if !j.Status.CanTransition(models.StatusFailed) {
			return false, nil
		}
		j.Status = models.StatusFailed
		j.Error = reason
		j.UpdatedAt = s.now().UTC()
		return true, nil
	})
}

// update serializes this process's writes to one job before the store's
// compare-and-set, so sibling documents do not race each other for a version.
func (s *Service) update(ctx context.Context, jobID string, mutate func(*models.Job) (bool, error)) (*models.Job, error) {
	mu := s.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()
	return jobstore.Update(ctx, s.store, jobID, mutate)
}

func (s *Service) jobLock(jobID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(jobID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func allFailedReason(j *models.Job) string {
	if len(j.Results) == 1 && j.Results[0].Error != nil {
		return j.Results[0].Error.Error()
	}
	var kinds []string
	seen := map[models.ExtractionErrorKind]bool{}
	for _, slot := range j.Results {
		if slot.Error != nil && !seen[slot.Error.Kind] {
			seen[slot.Error.Kind] = true
			kinds = append(kinds, string(slot.Error.Kind))
		}
	}
	return fmt.Sprintf("all %d documents failed (%s)", len(j.Results), strings.Join(kinds, ", "))
}
