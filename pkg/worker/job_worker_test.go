package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/queue"
)

type runnerFunc func(ctx context.Context, jobID string) error

func (f runnerFunc) Process(ctx context.Context, jobID string) error { return f(ctx, jobID) }

type memStatuses struct {
	mu      sync.Mutex
	history []queue.TaskStatus
}

func (m *memStatuses) SaveTaskStatus(_ context.Context, s *queue.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *s)
	return nil
}

func (m *memStatuses) GetTaskStatus(_ context.Context, id string) (*queue.TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].TaskID == id {
			s := m.history[i]
			return &s, nil
		}
	}
	return nil, queue.ErrStatusNotFound
}

func newTestWorker(runner JobRunner, statuses queue.StatusStore) *JobWorker {
	return &JobWorker{
		BaseWorker: BaseWorker{logger: logger.NewNop()},
		runner:     runner,
		statuses:   statuses,
	}
}

func jobTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := queue.NewJobTask(id, &queue.QueueConfig{MaxRetries: 1, ProcessTimeout: time.Minute}, time.Now())
	require.NoError(t, err)
	return task
}

func TestHandleJobProcess(t *testing.T) {
	statuses := &memStatuses{}
	var ran string
	w := newTestWorker(runnerFunc(func(_ context.Context, id string) error {
		ran = id
		return nil
	}), statuses)

	require.NoError(t, w.handleJobProcess(context.Background(), jobTask(t, "job-7")))
	assert.Equal(t, "job-7", ran)

	got, err := statuses.GetTaskStatus(context.Background(), "job-7")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Len(t, statuses.history, 2)
}

func TestHandleJobProcess_RunnerErrorIsRetried(t *testing.T) {
	statuses := &memStatuses{}
	boom := errors.New("store unavailable")
	w := newTestWorker(runnerFunc(func(context.Context, string) error { return boom }), statuses)

	err := w.handleJobProcess(context.Background(), jobTask(t, "job-8"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	got, _ := statuses.GetTaskStatus(context.Background(), "job-8")
	assert.Equal(t, "retrying", got.Status)
	assert.Equal(t, boom.Error(), got.Error)
}

func TestHandleJobProcess_BadPayloadSkipsRetry(t *testing.T) {
	w := newTestWorker(runnerFunc(func(context.Context, string) error {
		t.Fatal("runner must not be called")
		return nil
	}), &memStatuses{})

	err := w.handleJobProcess(context.Background(), asynq.NewTask(queue.TaskTypeJobProcess, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
