// Package memory provides an in-memory config.Store.
package memory

import (
	"context"
	"sync"

	"oceangateway/internal/config"
)

// Store is an in-memory config.Store. Intended for testing and for
// one-shot runs where the configuration comes from flags.
type Store struct {
	mu  sync.RWMutex
	raw map[string]any
}

var _ config.Store = (*Store)(nil)

// NewStore creates a store, optionally seeded with raw.
func NewStore(raw map[string]any) *Store {
	return &Store{raw: config.Clone(raw)}
}

// Load returns a copy of the stored mapping, or nil if nothing was saved.
func (s *Store) Load(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.Clone(s.raw), nil
}

// Save stores a copy of raw.
func (s *Store) Save(ctx context.Context, raw map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = config.Clone(raw)
	return nil
}
