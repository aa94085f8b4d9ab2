package entity

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// InMemory implements Store for tests and smoke runs.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*Record)}
}

// Put seeds or replaces a record.
func (s *InMemory) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Extracted = copyMap(rec.Extracted)
	s.records[key(rec.Kind, rec.ID)] = &rec
}

func (s *InMemory) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(kind, id)]
	if !ok {
		return Record{}, ErrNotFound
	}
	out := *rec
	out.Extracted = copyMap(rec.Extracted)
	return out, nil
}

func (s *InMemory) UpdateExtracted(ctx context.Context, kind Kind, id int64, extracted map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(kind, id)]
	if !ok {
		return ErrNotFound
	}
	rec.Extracted = copyMap(extracted)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func key(kind Kind, id int64) string {
	return string(kind) + "/" + strconv.FormatInt(id, 10)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
