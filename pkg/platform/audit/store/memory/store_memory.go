package memory

import (
	"context"
	"slices"
	"sync"

	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.UserID][]audit.Event
	order  []audit.Event
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.UserID][]audit.Event)
	s.order = nil
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.UserID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[userID]), nil
}

// ListRecent returns the last limit events in append order, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := max(len(s.order)-limit, 0)
	recent := slices.Clone(s.order[start:])
	slices.Reverse(recent)
	return recent, nil
}
