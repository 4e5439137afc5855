package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTask_RoundTrip(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	task, err := NewJobTask("job-1", &QueueConfig{MaxRetries: 2, ProcessTimeout: time.Minute}, now)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeJobProcess, task.Type())

	p, err := ParseJobPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, "job-1", p.JobID)
	assert.True(t, p.EnqueuedAt.Equal(now))

	_, err = ParseJobPayload([]byte(`{"jobId":""}`))
	assert.Error(t, err)
	_, err = ParseJobPayload([]byte(`nope`))
	assert.Error(t, err)
}

func TestRedisStatusStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStatusStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.GetTaskStatus(ctx, "j1")
	assert.ErrorIs(t, err, ErrStatusNotFound)

	require.NoError(t, s.SaveTaskStatus(ctx, &TaskStatus{TaskID: "j1", Status: "running", Attempt: 1}))
	got, err := s.GetTaskStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, time.Hour, mr.TTL("task_status:j1"))
}
