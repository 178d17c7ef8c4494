package testutil

import (
	"context"
	"sync"
)

// InMemorySequenceStore implements invoice.SequenceRepository
type InMemorySequenceStore struct {
	mu     sync.Mutex
	start  int64
	values map[string]int64
}

// NewInMemorySequenceStore hands out start as the first value of every counter
func NewInMemorySequenceStore(start int64) *InMemorySequenceStore {
	return &InMemorySequenceStore{start: start, values: make(map[string]int64)}
}

func (s *InMemorySequenceStore) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[name]
	if !ok {
		v = s.start
	} else {
		v++
	}
	s.values[name] = v
	return v, nil
}

// Current returns the last value handed out and whether any was
func (s *InMemorySequenceStore) Current(name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

func (s *InMemorySequenceStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

func (s *InMemorySequenceStore) Restore(snapshot any) {
	snap, ok := snapshot.(map[string]int64)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = snap
}

func (s *InMemorySequenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]int64)
}
