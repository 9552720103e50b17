package audit

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore keeps events in memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByAction returns events with the given action, oldest first.
func (s *InMemoryStore) ListByAction(_ context.Context, action Action) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every event, oldest first.
func (s *InMemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}
