package storage

import (
	"context"
	"sync"
)

// MemoryMedium keeps blobs in process memory. Used by tests and by the
// "memory" driver for throwaway deployments.
type MemoryMedium struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryMedium initializes an empty in-memory medium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key.
func (m *MemoryMedium) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set replaces the blob stored under key.
func (m *MemoryMedium) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

// Close is a no-op.
func (m *MemoryMedium) Close() error {
	return nil
}

// SetBatch stores all entries under one lock.
func (m *MemoryMedium) SetBatch(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.blobs[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}
