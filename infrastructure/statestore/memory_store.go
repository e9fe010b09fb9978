// Package statestore provides host key-value stores for module state:
// in-memory, one file per key, and SQLite with an LRU read cache.
package statestore

import (
	"context"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	values map[string][]byte
	mu     sync.RWMutex
}

var _ ports.StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get implements ports.StateStore.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Put implements ports.StateStore.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = clone(value)
	s.mu.Unlock()
	return nil
}

// Location implements ports.StateStore.
func (s *MemoryStore) Location() string {
	return "memory"
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
