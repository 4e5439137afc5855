package handlers

import (
	"context"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/internal/service/export"
	"github.com/feichai0017/tender-processor/internal/service/extraction"
	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/queue"
)

// JobService is the part of extraction.Service the API uses.
type JobService interface {
	Submit(ctx context.Context, req extraction.SubmitRequest) (*models.Job, error)
	Status(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, limit int) ([]*models.Job, error)
}

type Exporter interface {
	Open(ctx context.Context, jobID string, opts export.Options) (*export.Export, error)
}

// TaskStatusReader reports queue-side task state; nil in inline mode.
type TaskStatusReader interface {
	GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
}

type Handlers struct {
	Job    *JobHandler
	Health *HealthHandler
}

func NewHandlers(
	jobs JobService,
	exporter Exporter,
	tasks TaskStatusReader,
	maxBatchFiles int,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Job:    NewJobHandler(jobs, exporter, tasks, maxBatchFiles, logger),
		Health: NewHealthHandler(),
	}
}
