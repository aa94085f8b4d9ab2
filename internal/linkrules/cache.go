package linkrules

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"affiliateprograms.wiki/internal/obs"
)

// DefaultTTL bounds rule staleness when the caller does not configure one.
const DefaultTTL = 5 * time.Minute

// Cache serves rewrites from an atomically swapped rule snapshot. Refreshes
// happen off the request path: an expired snapshot keeps serving while one
// goroutine fetches a replacement, so Rewrite never blocks on the source.
// Before the first successful load, URLs pass through unrewritten.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	current    atomic.Pointer[Rewriter]
	mu         sync.Mutex
	loadedAt   time.Time
	refreshing bool
}

// NewCache wraps the source with a TTL-bounded snapshot.
func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, ttl: ttl, now: time.Now}
}

// Refresh fetches the rule set and swaps the snapshot in. Safe to call
// concurrently; used at startup and by the background loop.
func (c *Cache) Refresh(ctx context.Context) error {
	rules, err := c.source.LoadRules(ctx)
	if err != nil {
		obs.ObserveRuleRefresh("error")
		return err
	}
	c.current.Store(NewRewriter(rules))
	c.mu.Lock()
	c.loadedAt = c.now()
	c.mu.Unlock()
	obs.ObserveRuleRefresh("ok")
	return nil
}

// Rewrite applies the current snapshot. A stale snapshot triggers at most
// one asynchronous refresh and keeps serving; no snapshot at all falls
// open to the original URL.
func (c *Cache) Rewrite(url string) string {
	rw := c.current.Load()
	if rw == nil {
		obs.ObserveRewrite(string(ResultPassthrough))
		return url
	}
	if c.expired() {
		c.refreshAsync()
	}
	return rw.Rewrite(url)
}

func (c *Cache) expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.loadedAt) >= c.ttl
}

func (c *Cache) refreshAsync() {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.refreshing = false
			c.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Stale snapshot keeps serving if this fails.
		_ = c.Refresh(ctx)
	}()
}

// Run refreshes on a fixed interval until the context is canceled. Meant
// to be started once from the server entrypoint.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
