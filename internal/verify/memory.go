package verify

import (
	"context"
	"sort"
	"sync"
	"time"
)

func hoursToDuration(hours int) time.Duration {
	if hours < 0 {
		hours = 0
	}
	return time.Duration(hours) * time.Hour
}

// InMemoryStore implements Store for tests and smoke runs.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs []Run
	now  func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

func (s *InMemoryStore) RecordRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *InMemoryStore) ListBroken(ctx context.Context, minAge time.Duration, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().UTC().Add(-minAge)

	// Latest run per (entity kind, url); only broken/timeout outcomes count.
	latest := make(map[string]Run)
	for _, r := range s.runs {
		key := string(r.EntityKind) + "/" + r.URL
		if cur, ok := latest[key]; !ok || r.CheckedAt.After(cur.CheckedAt) {
			latest[key] = r
		}
	}
	var out []Run
	for _, r := range latest {
		if (r.Status == StatusBroken || r.Status == StatusTimeout) && r.CheckedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountBroken(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.runs {
		if r.Status == StatusBroken {
			n++
		}
	}
	return n, nil
}
