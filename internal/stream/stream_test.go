package stream

import (
	"context"
	"testing"
	"time"

	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	evt := Event{
		ProposalID: "p1",
		EntityKind: entity.KindProgram,
		EntityID:   42,
		Action:     editorial.ActionApprove,
		Status:     editorial.StatusApproved,
		AgentKey:   "ak_reviewer",
		Timestamp:  time.Now().UTC(),
	}
	s.Publish(evt)

	select {
	case got := <-ch:
		if got.ProposalID != "p1" || got.Action != editorial.ActionApprove {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context end")
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx)

	// Fill past the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(Event{ProposalID: "p"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on slow subscriber")
	}
}
