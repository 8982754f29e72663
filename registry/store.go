package registry

import (
	"context"
	"fmt"
	"sync"
)

// Store persists client configurations. The production deployment backs this
// with a document store; the registry only needs these four operations.
type Store interface {
	// GetAll returns every stored configuration, in no particular order.
	GetAll(ctx context.Context) ([]ClientConfiguration, error)

	// Get returns the configuration for clientID or ErrNotFound.
	Get(ctx context.Context, clientID string) (*ClientConfiguration, error)

	// Put creates or replaces the configuration keyed by its client id.
	Put(ctx context.Context, c ClientConfiguration) error

	// Delete removes the configuration for clientID or returns ErrNotFound.
	Delete(ctx context.Context, clientID string) error
}

// MemStore is an in-memory Store for tests and single-node development.
type MemStore struct {
	mu      sync.RWMutex
	configs map[string]ClientConfiguration
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		configs: map[string]ClientConfiguration{},
	}
}

// GetAll implements Store.
func (s *MemStore) GetAll(_ context.Context) ([]ClientConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ClientConfiguration, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c.clone())
	}
	return out, nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, clientID string) (*ClientConfiguration, error) {
	const op = "MemStore.Get"
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[clientID]
	if !ok {
		return nil, fmt.Errorf("%s: client %q: %w", op, clientID, ErrNotFound)
	}
	out := c.clone()
	return &out, nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, c ClientConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.ClientID] = c.clone()
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, clientID string) error {
	const op = "MemStore.Delete"
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[clientID]; !ok {
		return fmt.Errorf("%s: client %q: %w", op, clientID, ErrNotFound)
	}
	delete(s.configs, clientID)
	return nil
}
