package linkrules

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore implements Store for tests and smoke runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	rules  []Rule
	nextID int64
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore(seed ...Rule) *InMemoryStore {
	s := &InMemoryStore{nextID: 1}
	for _, r := range seed {
		rr := r
		_ = s.CreateRule(context.Background(), &rr)
	}
	return s
}

func (s *InMemoryStore) CreateRule(ctx context.Context, r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextID
	}
	if r.ID >= s.nextID {
		s.nextID = r.ID + 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rules = append(s.rules, *r)
	return nil
}

func (s *InMemoryStore) LoadRules(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListRules(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rule(nil), s.rules...), nil
}

func (s *InMemoryStore) CountActive(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.rules {
		if r.Enabled {
			n++
		}
	}
	return n, nil
}
