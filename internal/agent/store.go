package agent

import "context"

// Store describes persistence operations required by the registry.
type Store interface {
	Create(ctx context.Context, key *Key) error
	Find(ctx context.Context, id string) (*Key, error)
	List(ctx context.Context) ([]*Key, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	// RecordUse bumps total_requests and last_used_at. Best effort; a failure
	// here must not fail the authorized call.
	RecordUse(ctx context.Context, id string) error
}
