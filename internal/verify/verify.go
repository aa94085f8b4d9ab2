package verify

import (
	"context"
	"time"

	"affiliateprograms.wiki/internal/entity"
)

// URLType labels the role a checked URL plays for its entity.
type URLType string

const (
	URLSignup        URLType = "signup"
	URLAffiliatePage URLType = "affiliate_page"
	URLDeepLink      URLType = "deep_link"
	URLMerchantSite  URLType = "merchant_site"
)

// Valid reports whether t is a known URL type.
func (t URLType) Valid() bool {
	switch t {
	case URLSignup, URLAffiliatePage, URLDeepLink, URLMerchantSite:
		return true
	}
	return false
}

// Status is the outcome of one health check.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRedirect Status = "redirect"
	StatusBroken   Status = "broken"
	StatusTimeout  Status = "timeout"
	StatusBlocked  Status = "blocked"
)

// Hop is one redirect in the chain a check followed.
type Hop struct {
	URL  string `json:"url"`
	Code int    `json:"code"`
}

// Run records one URL health check. Runs are never updated in place; a
// newer run supersedes an older one.
type Run struct {
	ID            string      `json:"id"`
	EntityKind    entity.Kind `json:"entity_type"`
	EntityID      int64       `json:"entity_id"`
	URL           string      `json:"url"`
	URLType       URLType     `json:"url_type"`
	Status        Status      `json:"status"`
	HTTPCode      int         `json:"http_code,omitempty"`
	RedirectChain []Hop       `json:"redirect_chain,omitempty"`
	FinalURL      string      `json:"final_url,omitempty"`
	LatencyMS     int64       `json:"response_time_ms,omitempty"`
	CheckedAt     time.Time   `json:"verified_at"`
	NextCheckAt   time.Time   `json:"next_check_at"`
}

// Store persists runs append-only.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	// ListBroken returns the most recent broken or timed-out run per
	// entity, at least minAge old, newest first, capped at limit.
	ListBroken(ctx context.Context, minAge time.Duration, limit int) ([]Run, error)
	CountBroken(ctx context.Context) (int, error)
}

// Recheck intervals by outcome. Healthy URLs are revisited weekly; anything
// suspect gets another look the next day.
const (
	healthyRecheck = 7 * 24 * time.Hour
	suspectRecheck = 24 * time.Hour
)

func nextCheck(now time.Time, status Status) time.Time {
	if status == StatusSuccess || status == StatusRedirect {
		return now.Add(healthyRecheck)
	}
	return now.Add(suspectRecheck)
}
