package stream

import (
	"context"
	"sync"
	"time"

	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
)

// Event describes one proposal lifecycle change for dashboard live views.
type Event struct {
	ProposalID string           `json:"proposal_id"`
	EntityKind entity.Kind      `json:"entity_type"`
	EntityID   int64            `json:"entity_id"`
	Action     editorial.Action `json:"action"`
	Status     editorial.Status `json:"status"`
	AgentKey   string           `json:"agent_key_id"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Stream fan-outs proposal events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
