// Package memstore keeps render artifacts in process memory.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Store implements ports.ArtifactStore with a mutex-guarded map.
// Artifacts older than the TTL are swept on every Put.
type Store struct {
	mu    sync.Mutex
	items map[string]*domain.Artifact
	ttl   time.Duration
	now   func() time.Time
}

// New creates a store. A zero ttl keeps artifacts until they are taken.
func New(ttl time.Duration) *Store {
	return &Store{items: make(map[string]*domain.Artifact), ttl: ttl, now: time.Now}
}

func (s *Store) expired(a *domain.Artifact) bool {
	return s.ttl > 0 && s.now().Sub(a.CreatedAt) > s.ttl
}

func (s *Store) Put(_ context.Context, a *domain.Artifact) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("put artifact: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, it := range s.items {
		if s.expired(it) {
			delete(s.items, id)
		}
	}
	s.items[a.ID] = a
	return nil
}

// Take removes and returns the artifact. A second Take of the same ID
// returns domain.ErrNotFound.
func (s *Store) Take(_ context.Context, id string) (*domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	delete(s.items, id)
	if s.expired(a) {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
