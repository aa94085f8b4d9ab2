package editorial

import (
	"context"

	"affiliateprograms.wiki/internal/entity"
)

// Store persists proposals, the approval log, and publication history.
// Transition and Publish are the two write paths with transactional
// semantics: the row update and every companion insert commit together
// or not at all. Both compare-and-swap on the expected current status
// and return ErrConcurrentModification when another writer got there
// first.
type Store interface {
	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	ListProposals(ctx context.Context, f ListFilter) ([]*Proposal, int, error)
	ApprovalLog(ctx context.Context, proposalID string) ([]ApprovalLogEntry, error)

	// Transition applies mutate to the proposal and appends entry in one
	// atomic unit, guarded by a status compare-and-swap on expect.
	Transition(ctx context.Context, id string, expect Status, mutate func(*Proposal), entry ApprovalLogEntry) (*Proposal, error)

	// Publish commits the entity's new extracted document, the history
	// entry, the proposal's move to published, and the audit entry as one
	// atomic unit.
	Publish(ctx context.Context, id string, expect Status, newExtracted map[string]any, hist HistoryEntry, entry ApprovalLogEntry) (*Proposal, error)

	EntityHistory(ctx context.Context, kind entity.Kind, entityID int64) ([]HistoryEntry, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	CountHistory(ctx context.Context) (int, error)
}
