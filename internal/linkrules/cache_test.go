package linkrules

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type flakySource struct {
	mu    sync.Mutex
	rules []Rule
	fail  bool
	loads int
}

func (s *flakySource) LoadRules(ctx context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fail {
		return nil, errors.New("source down")
	}
	return append([]Rule(nil), s.rules...), nil
}

func (s *flakySource) set(rules []Rule, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules, s.fail = rules, fail
}

func TestCachePassesThroughBeforeFirstLoad(t *testing.T) {
	src := &flakySource{fail: true}
	c := NewCache(src, time.Minute)

	in := "https://example.com/x"
	if got := c.Rewrite(in); got != in {
		t.Fatalf("unloaded cache must fail open, got %s", got)
	}
}

func TestCacheServesSnapshotAfterRefresh(t *testing.T) {
	src := &flakySource{rules: []Rule{{
		ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: true,
	}}}
	c := NewCache(src, time.Minute)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := c.Rewrite("https://example.com/x"); !strings.HasPrefix(got, "https://t.example.net/") {
		t.Fatalf("expected rewrite from snapshot, got %s", got)
	}
}

func TestCacheServesStaleOnSourceError(t *testing.T) {
	src := &flakySource{rules: []Rule{{
		ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: true,
	}}}
	c := NewCache(src, time.Minute)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	src.set(nil, true)
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	// The previous snapshot keeps serving.
	if got := c.Rewrite("https://example.com/x"); !strings.HasPrefix(got, "https://t.example.net/") {
		t.Fatalf("stale snapshot must keep serving, got %s", got)
	}
}

func TestCacheRewriteDoesNotBlockOnExpiry(t *testing.T) {
	src := &flakySource{rules: []Rule{{
		ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: true,
	}}}
	c := NewCache(src, time.Minute)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Force expiry; the next Rewrite must serve immediately from the old
	// snapshot while a background refresh runs.
	c.mu.Lock()
	c.loadedAt = c.loadedAt.Add(-2 * time.Minute)
	c.mu.Unlock()

	done := make(chan string, 1)
	go func() { done <- c.Rewrite("https://example.com/x") }()
	select {
	case got := <-done:
		if !strings.HasPrefix(got, "https://t.example.net/") {
			t.Fatalf("expected rewrite, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Rewrite blocked on refresh")
	}
}
