package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"affiliateprograms.wiki/internal/ids"
)

const (
	defaultRateLimitPerMinute = 60
	defaultRateLimitPerDay    = 5000
)

// Registry resolves agent keys and gates every pipeline mutation. Rate limit
// state is process-local token buckets sized to the key's configured windows;
// the persistent counters are bookkeeping, not the enforcement mechanism.
type Registry struct {
	store Store
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyLimiter
}

type keyLimiter struct {
	minute *rate.Limiter
	day    *rate.Limiter
}

// Option configures Registry behavior.
type Option func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs a Registry backed by the given store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		now:      time.Now,
		limiters: make(map[string]*keyLimiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authorize resolves the key and checks it may execute the capability.
// On success it bumps the key's usage counters as an observable side effect.
func (r *Registry) Authorize(ctx context.Context, keyID, capability string) (*Key, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonNotFound}
	}
	key, err := r.store.Find(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonNotFound}
		}
		return nil, err
	}
	now := r.now().UTC()
	if !key.Enabled {
		return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonDisabled}
	}
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonExpired}
	}
	if !key.HasScope(capability) {
		return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonInsufficientScope}
	}
	if !r.allow(key, now) {
		return nil, &AuthorizationError{KeyID: keyID, Capability: capability, Reason: ReasonRateLimited}
	}

	// Usage bookkeeping must not fail the authorized call.
	_ = r.store.RecordUse(ctx, keyID)
	key.TotalRequests++
	key.LastUsedAt = &now
	return key, nil
}

func (r *Registry) allow(key *Key, now time.Time) bool {
	r.mu.Lock()
	lim, ok := r.limiters[key.ID]
	if !ok {
		lim = newKeyLimiter(key)
		r.limiters[key.ID] = lim
	}
	r.mu.Unlock()

	// Consume from both windows, or neither.
	if lim.minute.TokensAt(now) < 1 || lim.day.TokensAt(now) < 1 {
		return false
	}
	return lim.minute.AllowN(now, 1) && lim.day.AllowN(now, 1)
}

func newKeyLimiter(key *Key) *keyLimiter {
	perMinute := key.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = defaultRateLimitPerMinute
	}
	perDay := key.RateLimitPerDay
	if perDay <= 0 {
		perDay = defaultRateLimitPerDay
	}
	return &keyLimiter{
		minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		day:    rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(perDay)), perDay),
	}
}

// CreateKey registers a new credential. Admin-only at the HTTP layer.
func (r *Registry) CreateKey(ctx context.Context, name string, role Role, scopes []string, perMinute, perDay int, expiresAt *time.Time) (*Key, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if !role.Valid() {
		return nil, ErrInvalidInput
	}
	cleaned := dedupeScopes(scopes)
	if len(cleaned) == 0 {
		return nil, ErrInvalidInput
	}
	if perMinute <= 0 {
		perMinute = defaultRateLimitPerMinute
	}
	if perDay <= 0 {
		perDay = defaultRateLimitPerDay
	}
	key := &Key{
		ID:                 "ak_" + strings.ToLower(ids.New()),
		Name:               name,
		Role:               role,
		Scopes:             cleaned,
		RateLimitPerMinute: perMinute,
		RateLimitPerDay:    perDay,
		Enabled:            true,
		CreatedAt:          r.now().UTC(),
		ExpiresAt:          expiresAt,
	}
	if err := r.store.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Disable soft-disables a key; keys are never deleted.
func (r *Registry) Disable(ctx context.Context, keyID string) error {
	return r.store.SetEnabled(ctx, strings.TrimSpace(keyID), false)
}

// Enable re-enables a previously disabled key.
func (r *Registry) Enable(ctx context.Context, keyID string) error {
	return r.store.SetEnabled(ctx, strings.TrimSpace(keyID), true)
}

func dedupeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	var out []string
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
