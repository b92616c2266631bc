package prefs

import (
	"context"
	"sync"
)

// MemoryStore backs the filter when no database is configured, and tests.
type MemoryStore struct {
	mu    sync.Mutex
	codes []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.codes...), nil
}

func (s *MemoryStore) Save(ctx context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append([]string(nil), codes...)
	return nil
}
