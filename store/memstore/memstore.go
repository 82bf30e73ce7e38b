// Package memstore provides an in-memory Persistence Port, used for tests
// and as the simplest reference backend. Adapted from SharedCode-sop's
// in-memory node repository, generalized from a typed B-tree node map to a
// plain NodeId-to-bytes map.
package memstore

import (
	"context"
	"sync"

	"github.com/overflowgraph/refgraph"
)

// Store is an in-memory Persistence Port. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	lookup map[refgraph.NodeId][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{lookup: make(map[refgraph.NodeId][]byte)}
}

func (s *Store) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup[id] = append([]byte(nil), data...)
	return nil
}

func (s *Store) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.lookup[id]
	if !ok {
		return nil, refgraph.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Delete(ctx context.Context, id refgraph.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lookup, id)
	return nil
}

// Len returns the number of stored bodies, for test assertions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lookup)
}
