package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/feichai0017/tender-processor/internal/models"
)

// MemoryStore keeps serialized jobs in process memory. Stored bytes are never
// shared with callers, so readers always get an immutable snapshot.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
	meta map[string]memoryMeta
}

type memoryMeta struct {
	version int64
	created int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string][]byte),
		meta: make(map[string]memoryMeta),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	data, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return decodeJob(data)
}

func (s *MemoryStore) Put(ctx context.Context, job *models.Job, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.meta[job.ID]
	if (!exists && expectedVersion != 0) || (exists && current.version != expectedVersion) {
		return models.ErrVersionConflict
	}

	job.Version = expectedVersion + 1
	data, err := json.Marshal(job)
	if err != nil {
		job.Version = expectedVersion
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	s.jobs[job.ID] = data
	s.meta[job.ID] = memoryMeta{version: job.Version, created: job.CreatedAt.UnixNano()}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.meta))
	for id := range s.meta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.meta[ids[i]], s.meta[ids[j]]
		if a.created != b.created {
			return a.created > b.created
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = s.jobs[id]
	}
	s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(raw))
	for _, data := range raw {
		job, err := decodeJob(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.meta, id)
	return nil
}

func decodeJob(data []byte) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
