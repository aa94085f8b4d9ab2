package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedKey(t *testing.T, store *InMemory, key Key) *Key {
	t.Helper()
	if key.ID == "" {
		key.ID = "ak_test"
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	if err := store.Create(context.Background(), &key); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	return &key
}

func TestAuthorizeSuccessBumpsUsage(t *testing.T) {
	store := NewInMemory()
	seedKey(t, store, Key{ID: "ak_r1", Name: "researcher", Role: RoleResearcher, Scopes: []string{"propose:program"}, Enabled: true})
	reg := NewRegistry(store)

	key, err := reg.Authorize(context.Background(), "ak_r1", "propose:program")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if key.TotalRequests != 1 || key.LastUsedAt == nil {
		t.Fatalf("usage counters not bumped: %+v", key)
	}

	stored, _ := store.Find(context.Background(), "ak_r1")
	if stored.TotalRequests != 1 {
		t.Fatalf("expected persisted counter, got %d", stored.TotalRequests)
	}
}

func TestAuthorizeRefusals(t *testing.T) {
	store := NewInMemory()
	expired := time.Now().UTC().Add(-time.Hour)
	seedKey(t, store, Key{ID: "ak_disabled", Role: RoleReviewer, Scopes: []string{"review:all"}, Enabled: false})
	seedKey(t, store, Key{ID: "ak_expired", Role: RoleReviewer, Scopes: []string{"review:all"}, Enabled: true, ExpiresAt: &expired})
	seedKey(t, store, Key{ID: "ak_narrow", Role: RoleResearcher, Scopes: []string{"propose:category"}, Enabled: true})
	reg := NewRegistry(store)

	cases := []struct {
		keyID      string
		capability string
		reason     Reason
	}{
		{"ak_missing", "review:all", ReasonNotFound},
		{"ak_disabled", "review:all", ReasonDisabled},
		{"ak_expired", "review:all", ReasonExpired},
		{"ak_narrow", "propose:program", ReasonInsufficientScope},
	}
	for _, tc := range cases {
		_, err := reg.Authorize(context.Background(), tc.keyID, tc.capability)
		ae, ok := IsAuthorizationError(err)
		if !ok {
			t.Fatalf("%s: expected AuthorizationError, got %v", tc.keyID, err)
		}
		if ae.Reason != tc.reason {
			t.Fatalf("%s: expected reason %s, got %s", tc.keyID, tc.reason, ae.Reason)
		}
	}
}

func TestAuthorizeWildcardScopes(t *testing.T) {
	store := NewInMemory()
	seedKey(t, store, Key{ID: "ak_admin", Role: RoleAdmin, Scopes: []string{"*"}, Enabled: true})
	seedKey(t, store, Key{ID: "ak_propose", Role: RoleResearcher, Scopes: []string{"propose:*"}, Enabled: true})
	reg := NewRegistry(store)

	if _, err := reg.Authorize(context.Background(), "ak_admin", "publish:all"); err != nil {
		t.Fatalf("global wildcard refused: %v", err)
	}
	if _, err := reg.Authorize(context.Background(), "ak_propose", "propose:network"); err != nil {
		t.Fatalf("action wildcard refused: %v", err)
	}
	if _, err := reg.Authorize(context.Background(), "ak_propose", "review:all"); err == nil {
		t.Fatal("action wildcard must not grant other actions")
	}
}

func TestAuthorizeRateLimitedPerMinute(t *testing.T) {
	store := NewInMemory()
	seedKey(t, store, Key{ID: "ak_slow", Role: RoleResearcher, Scopes: []string{"propose:program"}, RateLimitPerMinute: 1, Enabled: true})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	reg := NewRegistry(store, WithClock(func() time.Time { return now }))

	if _, err := reg.Authorize(context.Background(), "ak_slow", "propose:program"); err != nil {
		t.Fatalf("first call refused: %v", err)
	}
	now = base.Add(10 * time.Second)
	_, err := reg.Authorize(context.Background(), "ak_slow", "propose:program")
	ae, ok := IsAuthorizationError(err)
	if !ok || ae.Reason != ReasonRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if !ae.Retryable() {
		t.Fatal("rate limited must be retryable")
	}

	// The rolling window admits a call once a minute has passed.
	now = base.Add(61 * time.Second)
	if _, err := reg.Authorize(context.Background(), "ak_slow", "propose:program"); err != nil {
		t.Fatalf("call after window refused: %v", err)
	}
}

func TestCreateKeyValidation(t *testing.T) {
	store := NewInMemory()
	reg := NewRegistry(store)
	ctx := context.Background()

	if _, err := reg.CreateKey(ctx, "", RoleResearcher, []string{"propose:*"}, 0, 0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
	if _, err := reg.CreateKey(ctx, "bot", Role("oracle"), []string{"*"}, 0, 0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}

	key, err := reg.CreateKey(ctx, "overnight runner", RoleResearcher, []string{"propose:program", "propose:program", ""}, 0, 0, nil)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if len(key.Scopes) != 1 {
		t.Fatalf("scopes not deduplicated: %v", key.Scopes)
	}
	if key.RateLimitPerMinute != defaultRateLimitPerMinute || key.RateLimitPerDay != defaultRateLimitPerDay {
		t.Fatalf("defaults not applied: %+v", key)
	}
	if !key.Enabled {
		t.Fatal("new keys must be enabled")
	}
}

func TestDisableThenAuthorize(t *testing.T) {
	store := NewInMemory()
	seedKey(t, store, Key{ID: "ak_gone", Role: RoleReviewer, Scopes: []string{"review:all"}, Enabled: true})
	reg := NewRegistry(store)
	ctx := context.Background()

	if err := reg.Disable(ctx, "ak_gone"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	_, err := reg.Authorize(ctx, "ak_gone", "review:all")
	ae, ok := IsAuthorizationError(err)
	if !ok || ae.Reason != ReasonDisabled {
		t.Fatalf("expected disabled, got %v", err)
	}
}
