// Package memory is an in-process Storage used by single-node deployments
// and tests.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var ErrNotFound = errors.New("object not found")

type object struct {
	data     []byte
	modified time.Time
}

type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func New() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]object), now: time.Now}
}

// WithClock overrides the modification clock.
func (m *MemoryStorage) WithClock(now func() time.Time) *MemoryStorage {
	m.now = now
	return m
}

func (m *MemoryStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = object{data: data, modified: m.now()}
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("failed to get file %s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, obj := range m.objects {
		if obj.modified.Before(threshold) {
			delete(m.objects, key)
		}
	}
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
