package editorial

import (
	"time"

	"affiliateprograms.wiki/internal/entity"
)

// Status is a proposal lifecycle state.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusPendingSEO    Status = "pending_seo"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusPublished     Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingReview, StatusPendingSEO, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusPublished
}

// Action is a state-changing decision recorded in the approval log.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionSEOComplete    Action = "seo_complete"
	ActionPublish        Action = "publish"
)

// Source is one piece of supporting evidence attached to a proposal.
type Source struct {
	URL        string     `json:"url"`
	Title      string     `json:"title,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// ValidationResults captures the automated checks a reviewer consults.
type ValidationResults struct {
	SchemaValid bool   `json:"schema_valid"`
	URLCheck    string `json:"url_check"`
	PolicyCheck string `json:"policy_check"`
}

// SEOMetadata is attached by an seo_editor before an entity page regenerates.
type SEOMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	Slug        string   `json:"slug,omitempty"`
}

// Proposal is an agent-authored request to change one entity's fields.
// Rows are never deleted; rejection is a terminal status.
type Proposal struct {
	ID             string             `json:"id"`
	EntityKind     entity.Kind        `json:"entity_type"`
	EntityID       int64              `json:"entity_id"`
	Changes        map[string]any     `json:"changes"`
	PreviousValues map[string]any     `json:"previous_values,omitempty"`
	Sources        []Source           `json:"sources,omitempty"`
	Reasoning      string             `json:"reasoning,omitempty"`
	ModelUsed      string             `json:"model_used,omitempty"`
	Status         Status             `json:"status"`
	ResearcherKey  string             `json:"researcher_key_id"`
	ReviewerKey    string             `json:"reviewer_key_id,omitempty"`
	ReviewNotes    string             `json:"review_notes,omitempty"`
	Validation     *ValidationResults `json:"validation,omitempty"`
	SEOEditorKey   string             `json:"seo_editor_key_id,omitempty"`
	SEO            *SEOMetadata       `json:"seo_metadata,omitempty"`
	SupersedesID   string             `json:"supersedes_id,omitempty"`
	HistoryID      string             `json:"history_id,omitempty"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ApprovalLogEntry is one append-only audit row per state-changing action.
type ApprovalLogEntry struct {
	ID         string             `json:"id"`
	ProposalID string             `json:"proposal_id"`
	Action     Action             `json:"action"`
	AgentKey   string             `json:"agent_key_id"`
	Validation *ValidationResults `json:"validation,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// HistoryEntry is one append-only provenance row per published change.
// Replaying an entity's entries in order reconstructs its researched state.
type HistoryEntry struct {
	ID                string         `json:"id"`
	EntityKind        entity.Kind    `json:"entity_type"`
	EntityID          int64          `json:"entity_id"`
	PreviousExtracted map[string]any `json:"previous_extracted"`
	NewExtracted      map[string]any `json:"new_extracted"`
	Diff              []PatchOp      `json:"diff"`
	AgentKey          string         `json:"agent_key_id"`
	ModelUsed         string         `json:"model_used,omitempty"`
	Sources           []Source       `json:"sources,omitempty"`
	Reasoning         string         `json:"reasoning,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ListFilter narrows ListProposals results. Zero values mean "any".
type ListFilter struct {
	Status     Status
	EntityKind entity.Kind
	Limit      int
	Offset     int
}

// Stats summarizes pipeline health for the dashboard.
type Stats struct {
	ByStatus        map[Status]int `json:"by_status"`
	HistoryEntries  int            `json:"history_entries"`
	BrokenURLs      int            `json:"broken_urls"`
	ActiveLinkRules int            `json:"active_link_rules"`
}
