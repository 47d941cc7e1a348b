package store

import (
	"context"
	"sync"

	"github.com/parcelworks/eventgate/internal/domain"
)

// MemoryStore is a map-backed schema store for tests and local runs. It
// satisfies the same contract as the Postgres store, including returning
// (nil, nil) for missing keys.
type MemoryStore struct {
	mu      sync.RWMutex
	schemas map[domain.SchemaKey][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{schemas: make(map[domain.SchemaKey][]byte)}
}

func (s *MemoryStore) PutSchema(_ context.Context, key domain.SchemaKey, schemaJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(schemaJSON))
	copy(cp, schemaJSON)
	s.schemas[key] = cp
	return nil
}

func (s *MemoryStore) GetSchema(_ context.Context, key domain.SchemaKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.schemas[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}
