package editorial

import (
	"context"
	"sort"
	"sync"

	"affiliateprograms.wiki/internal/entity"
)

// InMemoryStore implements Store for tests and smoke runs. Publish writes
// entity state through the wrapped entity store only after every staged
// step succeeds, mirroring the transactional pg implementation.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]*Proposal
	log       []ApprovalLogEntry
	history   []HistoryEntry
	entities  entity.Store

	// publishHook, when set, runs after the history entry is staged and
	// before anything commits. Lets tests inject mid-publish failures.
	publishHook func() error
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore wraps the given entity store for publication writes.
func NewInMemoryStore(entities entity.Store) *InMemoryStore {
	return &InMemoryStore{
		proposals: make(map[string]*Proposal),
		entities:  entities,
	}
}

// SetPublishHook installs a mid-publish failure injection point.
func (s *InMemoryStore) SetPublishHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishHook = fn
}

func (s *InMemoryStore) CreateProposal(ctx context.Context, p *Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListProposals(ctx context.Context, f ListFilter) ([]*Proposal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Proposal
	for _, p := range s.proposals {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.EntityKind != "" && p.EntityKind != f.EntityKind {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return nil, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *InMemoryStore) ApprovalLog(ctx context.Context, proposalID string) ([]ApprovalLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ApprovalLogEntry
	for _, e := range s.log {
		if e.ProposalID == proposalID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Transition(ctx context.Context, id string, expect Status, mutate func(*Proposal), entry ApprovalLogEntry) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != expect {
		return nil, ErrConcurrentModification
	}
	cp := *p
	mutate(&cp)
	cp.UpdatedAt = entry.CreatedAt
	s.proposals[id] = &cp
	s.log = append(s.log, entry)
	out := cp
	return &out, nil
}

func (s *InMemoryStore) Publish(ctx context.Context, id string, expect Status, newExtracted map[string]any, hist HistoryEntry, entry ApprovalLogEntry) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != expect {
		return nil, ErrConcurrentModification
	}

	// Stage everything first; commit nothing until all steps succeed.
	if s.publishHook != nil {
		if err := s.publishHook(); err != nil {
			return nil, err
		}
	}
	if err := s.entities.UpdateExtracted(ctx, hist.EntityKind, hist.EntityID, newExtracted); err != nil {
		return nil, err
	}

	now := entry.CreatedAt
	cp := *p
	cp.Status = StatusPublished
	cp.HistoryID = hist.ID
	publishedAt := now
	cp.PublishedAt = &publishedAt
	cp.UpdatedAt = now
	s.proposals[id] = &cp
	s.history = append(s.history, hist)
	s.log = append(s.log, entry)
	out := cp
	return &out, nil
}

func (s *InMemoryStore) EntityHistory(ctx context.Context, kind entity.Kind, entityID int64) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []HistoryEntry
	for _, h := range s.history {
		if h.EntityKind == kind && h.EntityID == entityID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Status]int)
	for _, p := range s.proposals {
		out[p.Status]++
	}
	return out, nil
}

func (s *InMemoryStore) CountHistory(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history), nil
}

// LogSize reports the total approval log length. Test helper.
func (s *InMemoryStore) LogSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}
