package store

import (
	"context"
	"sync"
)

// KV is the key/value primitive backing the snapshot cache.
// SetItems must apply all items or none; GetItems must read a consistent
// view. Missing keys are absent from the returned map.
type KV interface {
	GetItems(ctx context.Context, keys ...string) (map[string]string, error)
	SetItems(ctx context.Context, items map[string]string) error
	Close() error
}

// MemoryKV is a concurrency-safe in-memory KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// GetItems returns the stored values for keys.
func (s *MemoryKV) GetItems(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetItems stores all items under one lock.
func (s *MemoryKV) SetItems(_ context.Context, items map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range items {
		s.data[k] = v
	}
	return nil
}

func (s *MemoryKV) Close() error { return nil }
