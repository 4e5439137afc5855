package jobstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test", time.Hour, logger.NewNop()), mr
}

func stores(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func newJob(id string, created time.Time) *models.Job {
	return models.NewJob(id, models.KindSingle, "nl",
		[]models.Document{{Filename: "bestek.pdf", Size: 10, ContentKey: "jobs/" + id + "/0_bestek.pdf"}},
		models.JobOptions{}, created)
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newJob("j1", time.Now().UTC())

			require.NoError(t, s.Put(ctx, job, 0))
			assert.Equal(t, int64(1), job.Version)

			got, err := s.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, models.StatusQueued, got.Status)
			assert.Equal(t, int64(1), got.Version)
			assert.Equal(t, "bestek.pdf", got.Documents[0].Filename)

			// snapshots are private copies
			got.Status = models.StatusFailed
			again, err := s.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, models.StatusQueued, again.Status)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, models.ErrJobNotFound)
		})
	}
}

func TestStore_VersionConflict(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newJob("j1", time.Now().UTC())
			require.NoError(t, s.Put(ctx, job, 0))

			// creating twice conflicts
			dup := newJob("j1", time.Now().UTC())
			assert.ErrorIs(t, s.Put(ctx, dup, 0), models.ErrVersionConflict)

			a, err := s.Get(ctx, "j1")
			require.NoError(t, err)
			b, err := s.Get(ctx, "j1")
			require.NoError(t, err)

			a.Status = models.StatusProcessing
			require.NoError(t, s.Put(ctx, a, a.Version))

			b.Status = models.StatusFailed
			err = s.Put(ctx, b, b.Version)
			assert.ErrorIs(t, err, models.ErrVersionConflict)
			assert.Equal(t, int64(1), b.Version)

			got, err := s.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, models.StatusProcessing, got.Status)
			assert.Equal(t, int64(2), got.Version)
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 4; i++ {
				require.NoError(t, s.Put(ctx, newJob(fmt.Sprintf("j%d", i), base.Add(time.Duration(i)*time.Minute)), 0))
			}

			jobs, err := s.List(ctx, 3)
			require.NoError(t, err)
			require.Len(t, jobs, 3)
			assert.Equal(t, "j3", jobs[0].ID)
			assert.Equal(t, "j1", jobs[2].ID)

			require.NoError(t, s.Delete(ctx, "j3"))
			jobs, err = s.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, jobs, 3)
			assert.Equal(t, "j2", jobs[0].ID)
		})
	}
}

func TestUpdate_ConcurrentIncrements(t *testing.T) {
	const writers = 32
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := models.NewJob("j1", models.KindBatch, "nl", make([]models.Document, writers), models.JobOptions{}, time.Now().UTC())
			require.NoError(t, s.Put(ctx, job, 0))

			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := Update(ctx, s, "j1", func(j *models.Job) (bool, error) {
						j.Progress.Processed++
						j.Results[i].Status = models.SlotSucceeded
						return true, nil
					})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, err := s.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, writers, got.Progress.Processed)
			for _, slot := range got.Results {
				assert.Equal(t, models.SlotSucceeded, slot.Status)
			}
		})
	}
}

// conflictingStore loses every write to a concurrent writer.
type conflictingStore struct {
	Store
	puts int
}

func (c *conflictingStore) Put(context.Context, *models.Job, int64) error {
	c.puts++
	return models.ErrVersionConflict
}

func TestUpdate_ConflictsRetryUntilContextEnds(t *testing.T) {
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(context.Background(), newJob("j1", time.Now().UTC()), 0))
	s := &conflictingStore{Store: inner}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := Update(ctx, s, "j1", func(j *models.Job) (bool, error) {
		j.Progress.Processed++
		return true, nil
	})
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, s.puts, 2)
}

func TestUpdate_SkipWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newJob("j1", time.Now()), 0))

	job, err := Update(ctx, s, "j1", func(*models.Job) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.Version)
}

func TestRedisStore_ExpiredJobsArePruned(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newJob("old", time.Now()), 0))
	assert.True(t, mr.Exists("test:job:old"))

	mr.FastForward(2 * time.Hour)

	jobs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
