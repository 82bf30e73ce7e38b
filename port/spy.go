package port

import (
	"context"
	"sync"

	"github.com/overflowgraph/refgraph"
)

// Spy is an in-memory Port that records every call, for use in scheduler
// tests that need to assert what was persisted without a real backend.
type Spy struct {
	mu sync.Mutex

	data map[refgraph.NodeId][]byte

	PutCalls    []refgraph.NodeId
	GetCalls    []refgraph.NodeId
	DeleteCalls []refgraph.NodeId

	// FailPut, when non-nil, is returned by Put instead of succeeding, for
	// every id in the set.
	FailPut map[refgraph.NodeId]error
}

// NewSpy returns an empty Spy.
func NewSpy() *Spy {
	return &Spy{
		data:    make(map[refgraph.NodeId][]byte),
		FailPut: make(map[refgraph.NodeId]error),
	}
}

func (s *Spy) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls = append(s.PutCalls, id)
	if err := s.FailPut[id]; err != nil {
		return err
	}
	s.data[id] = append([]byte(nil), data...)
	return nil
}

func (s *Spy) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, id)
	data, ok := s.data[id]
	if !ok {
		return nil, refgraph.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Spy) Delete(ctx context.Context, id refgraph.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls = append(s.DeleteCalls, id)
	delete(s.data, id)
	return nil
}

// Count reports how many bodies are currently stored.
func (s *Spy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
