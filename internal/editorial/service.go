package editorial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/ids"
	"affiliateprograms.wiki/internal/obs"
)

// BrokenURLCounter reports how many tracked URLs are currently broken.
type BrokenURLCounter interface {
	CountBroken(ctx context.Context) (int, error)
}

// ActiveRuleCounter reports how many link rewrite rules are enabled.
type ActiveRuleCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Service is the editorial pipeline: proposal submission, the
// review/approval state machine, and the publication engine. Every
// mutation is gated by an agent authorization check.
type Service struct {
	store    Store
	entities entity.Store
	agents   *agent.Registry
	seoKinds map[entity.Kind]bool
	broken   BrokenURLCounter
	rules    ActiveRuleCounter
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSEORequired marks entity kinds whose proposals pass through
// pending_seo before approval.
func WithSEORequired(kinds ...entity.Kind) ServiceOption {
	return func(s *Service) {
		for _, k := range kinds {
			s.seoKinds[k] = true
		}
	}
}

// WithStatsSources wires the broken-URL and active-rule counters into Stats.
func WithStatsSources(broken BrokenURLCounter, rules ActiveRuleCounter) ServiceOption {
	return func(s *Service) {
		s.broken = broken
		s.rules = rules
	}
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the pipeline over its store, the entity store, and the
// agent registry.
func NewService(store Store, entities entity.Store, agents *agent.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		entities: entities,
		agents:   agents,
		seoKinds: make(map[entity.Kind]bool),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize tries each capability in order. Scope refusals fall through to
// the next alternative; any other refusal is final. The registry checks
// scope before charging rate limits, so trying alternatives is free.
func (s *Service) authorize(ctx context.Context, keyID string, capabilities ...string) (*agent.Key, error) {
	var last error
	for _, c := range capabilities {
		key, err := s.agents.Authorize(ctx, keyID, c)
		if err == nil {
			return key, nil
		}
		if ae, ok := agent.IsAuthorizationError(err); ok && ae.Reason == agent.ReasonInsufficientScope {
			last = err
			continue
		}
		return nil, err
	}
	return nil, last
}

// Submit creates a proposal in pending_review. Requires propose:<kind>
// (propose:* and * wildcards also satisfy it).
func (s *Service) Submit(ctx context.Context, keyID string, kind entity.Kind, entityID int64, changes map[string]any, sources []Source, reasoning, modelUsed string) (*Proposal, error) {
	return s.submit(ctx, keyID, kind, entityID, changes, sources, reasoning, modelUsed, "")
}

func (s *Service) submit(ctx context.Context, keyID string, kind entity.Kind, entityID int64, changes map[string]any, sources []Source, reasoning, modelUsed, supersedesID string) (*Proposal, error) {
	key, err := s.authorize(ctx, keyID, "propose:"+string(kind))
	if err != nil {
		return nil, err
	}
	if err := validateSubmission(kind, changes); err != nil {
		return nil, err
	}
	current, err := s.entities.Get(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}

	// Snapshot only the fields the proposal touches; the full document is
	// captured again at publish time.
	previous := make(map[string]any, len(changes))
	for field := range changes {
		if v, ok := current.Extracted[field]; ok {
			previous[field] = v
		}
	}

	now := s.now().UTC()
	p := &Proposal{
		ID:             ids.NewUUID(),
		EntityKind:     kind,
		EntityID:       entityID,
		Changes:        changes,
		PreviousValues: previous,
		Sources:        sources,
		Reasoning:      strings.TrimSpace(reasoning),
		ModelUsed:      strings.TrimSpace(modelUsed),
		Status:         StatusPendingReview,
		ResearcherKey:  key.ID,
		SupersedesID:   supersedesID,
		Validation:     &ValidationResults{SchemaValid: true, URLCheck: "pending", PolicyCheck: "pending"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	obs.LogRequest(map[string]any{
		"ts": now.Format(time.RFC3339Nano), "msg": "proposal submitted",
		"proposal_id": p.ID, "entity_type": kind, "entity_id": entityID, "agent_key": key.ID,
	})
	return p, nil
}

// Resubmit creates a fresh proposal referencing an earlier one that was
// annotated via request_changes. The original is never edited in place.
func (s *Service) Resubmit(ctx context.Context, keyID, originalID string, changes map[string]any, sources []Source, reasoning, modelUsed string) (*Proposal, error) {
	original, err := s.store.GetProposal(ctx, originalID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, keyID, original.EntityKind, original.EntityID, changes, sources, reasoning, modelUsed, original.ID)
}

// Get returns a proposal by id.
func (s *Service) Get(ctx context.Context, id string) (*Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// ApprovalLog returns the ordered audit trail for a proposal.
func (s *Service) ApprovalLog(ctx context.Context, id string) ([]ApprovalLogEntry, error) {
	if _, err := s.store.GetProposal(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ApprovalLog(ctx, id)
}

// List returns proposals matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Proposal, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.EntityKind != "" && !f.EntityKind.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown entity type %q", ErrValidation, f.EntityKind)
	}
	return s.store.ListProposals(ctx, f)
}

// Review applies approve, reject, or request_changes to a pending_review
// proposal. Exactly one approval log entry is appended on success; nothing
// is mutated on refusal.
func (s *Service) Review(ctx context.Context, keyID, proposalID string, action Action, notes string) (*Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	var capabilities []string
	switch action {
	case ActionApprove:
		capabilities = []string{"review:" + string(p.EntityKind), "review:all"}
	case ActionReject, ActionRequestChanges:
		capabilities = []string{"review:all"}
	default:
		return nil, fmt.Errorf("%w: unknown review action %q", ErrValidation, action)
	}
	key, err := s.authorize(ctx, keyID, capabilities...)
	if err != nil {
		obs.ObserveTransition(string(action), "unauthorized")
		return nil, err
	}

	if p.Status != StatusPendingReview {
		obs.ObserveTransition(string(action), "invalid")
		return nil, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, p.Status)
	}
	notes = strings.TrimSpace(notes)
	if action == ActionReject && notes == "" {
		return nil, fmt.Errorf("%w: rejection requires notes", ErrValidation)
	}

	to := p.Status
	switch action {
	case ActionApprove:
		to = StatusApproved
		if s.seoKinds[p.EntityKind] {
			to = StatusPendingSEO
		}
	case ActionReject:
		to = StatusRejected
	case ActionRequestChanges:
		to = StatusPendingReview
	}

	now := s.now().UTC()
	updated, err := s.store.Transition(ctx, proposalID, StatusPendingReview, func(row *Proposal) {
		row.Status = to
		row.ReviewerKey = key.ID
		if notes != "" {
			row.ReviewNotes = notes
		}
	}, ApprovalLogEntry{
		ID:         ids.New(),
		ProposalID: proposalID,
		Action:     action,
		AgentKey:   key.ID,
		Validation: p.Validation,
		Notes:      notes,
		CreatedAt:  now,
	})
	if err != nil {
		obs.ObserveTransition(string(action), "conflict")
		return nil, err
	}
	obs.ObserveTransition(string(action), "ok")
	return updated, nil
}

// CompleteSEO attaches SEO metadata and moves pending_seo to approved.
// Requires seo:all.
func (s *Service) CompleteSEO(ctx context.Context, keyID, proposalID string, meta SEOMetadata) (*Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	key, err := s.authorize(ctx, keyID, "seo:all")
	if err != nil {
		obs.ObserveTransition(string(ActionSEOComplete), "unauthorized")
		return nil, err
	}
	if p.Status != StatusPendingSEO {
		obs.ObserveTransition(string(ActionSEOComplete), "invalid")
		return nil, fmt.Errorf("%w: seo_complete from %s", ErrInvalidTransition, p.Status)
	}
	if strings.TrimSpace(meta.Title) == "" || strings.TrimSpace(meta.Description) == "" {
		return nil, fmt.Errorf("%w: seo metadata requires title and description", ErrValidation)
	}

	now := s.now().UTC()
	updated, err := s.store.Transition(ctx, proposalID, StatusPendingSEO, func(row *Proposal) {
		row.Status = StatusApproved
		row.SEOEditorKey = key.ID
		row.SEO = &meta
	}, ApprovalLogEntry{
		ID:         ids.New(),
		ProposalID: proposalID,
		Action:     ActionSEOComplete,
		AgentKey:   key.ID,
		Validation: p.Validation,
		CreatedAt:  now,
	})
	if err != nil {
		obs.ObserveTransition(string(ActionSEOComplete), "conflict")
		return nil, err
	}
	obs.ObserveTransition(string(ActionSEOComplete), "ok")
	return updated, nil
}

// Publish applies an approved proposal's changes to the entity store as a
// single atomic operation and appends the history entry capturing the
// diff. Requires publish:all. On failure the proposal stays approved and
// the entity is untouched.
func (s *Service) Publish(ctx context.Context, keyID, proposalID string) (*Proposal, *HistoryEntry, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	key, err := s.authorize(ctx, keyID, "publish:all")
	if err != nil {
		obs.ObserveTransition(string(ActionPublish), "unauthorized")
		return nil, nil, err
	}
	if p.Status != StatusApproved {
		obs.ObserveTransition(string(ActionPublish), "invalid")
		return nil, nil, fmt.Errorf("%w: publish from %s", ErrInvalidTransition, p.Status)
	}

	current, err := s.entities.Get(ctx, p.EntityKind, p.EntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}
	next := merge(current.Extracted, p.Changes)

	now := s.now().UTC()
	hist := HistoryEntry{
		ID:                ids.New(),
		EntityKind:        p.EntityKind,
		EntityID:          p.EntityID,
		PreviousExtracted: current.Extracted,
		NewExtracted:      next,
		Diff:              Diff(current.Extracted, next),
		AgentKey:          p.ResearcherKey,
		ModelUsed:         p.ModelUsed,
		Sources:           p.Sources,
		Reasoning:         p.Reasoning,
		CreatedAt:         now,
	}
	entry := ApprovalLogEntry{
		ID:         ids.New(),
		ProposalID: proposalID,
		Action:     ActionPublish,
		AgentKey:   key.ID,
		Validation: p.Validation,
		CreatedAt:  now,
	}
	updated, err := s.store.Publish(ctx, proposalID, StatusApproved, next, hist, entry)
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			obs.ObserveTransition(string(ActionPublish), "conflict")
			return nil, nil, err
		}
		obs.ObserveTransition(string(ActionPublish), "failed")
		return nil, nil, fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}
	obs.ObserveTransition(string(ActionPublish), "ok")
	obs.LogRequest(map[string]any{
		"ts": now.Format(time.RFC3339Nano), "msg": "proposal published",
		"proposal_id": proposalID, "entity_type": p.EntityKind, "entity_id": p.EntityID,
		"history_id": hist.ID, "agent_key": key.ID,
	})
	return updated, &hist, nil
}

// EntityHistory returns the ordered publication history for one entity.
func (s *Service) EntityHistory(ctx context.Context, kind entity.Kind, entityID int64) ([]HistoryEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrValidation, kind)
	}
	return s.store.EntityHistory(ctx, kind, entityID)
}

// Stats returns per-status counts plus broken-URL and active-rule counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	histCount, err := s.store.CountHistory(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{ByStatus: byStatus, HistoryEntries: histCount}
	if s.broken != nil {
		if n, err := s.broken.CountBroken(ctx); err == nil {
			out.BrokenURLs = n
		}
	}
	if s.rules != nil {
		if n, err := s.rules.CountActive(ctx); err == nil {
			out.ActiveLinkRules = n
		}
	}
	return out, nil
}
