package agent

import (
	"context"
	"sync"
	"time"
)

// InMemory implements Store for tests and smoke runs.
type InMemory struct {
	mu   sync.RWMutex
	keys map[string]*Key
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{keys: make(map[string]*Key)}
}

func (s *InMemory) Create(ctx context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *key
	cp.Scopes = append([]string(nil), key.Scopes...)
	return &cp, nil
}

func (s *InMemory) List(ctx context.Context) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Key, 0, len(s.keys))
	for _, key := range s.keys {
		cp := *key
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	key.Enabled = enabled
	return nil
}

func (s *InMemory) RecordUse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	key.TotalRequests++
	key.LastUsedAt = &now
	return nil
}
