package linkrules

import (
	"context"
	"errors"
	"time"
)

// Defaults substituted when a rule leaves its UTM fields unset.
const (
	DefaultUTMSource = "affiliateprograms.wiki"
	DefaultUTMMedium = "referral"
)

var (
	ErrNotFound     = errors.New("linkrules: rule not found")
	ErrInvalidInput = errors.New("linkrules: invalid input")
)

// Rule is one deterministic rewrite rule. Among enabled rules matching a
// (domain, path), the highest-priority one applies; ties break toward the
// lowest id.
type Rule struct {
	ID             int64     `json:"id"`
	MatchDomain    string    `json:"match_domain"`
	MatchPath      string    `json:"match_path_pattern,omitempty"`
	Template       string    `json:"affiliate_template"`
	Network        string    `json:"network,omitempty"`
	DefaultTag     string    `json:"default_tag,omitempty"`
	UTMSource      string    `json:"utm_source,omitempty"`
	UTMMedium      string    `json:"utm_medium,omitempty"`
	UTMCampaign    string    `json:"utm_campaign,omitempty"`
	ExceptionPaths []string  `json:"exception_paths,omitempty"`
	Priority       int       `json:"priority"`
	Enabled        bool      `json:"is_enabled"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the minimum shape for a new rule.
func (r *Rule) Validate() error {
	if r.MatchDomain == "" {
		return errors.New("linkrules: match_domain is required")
	}
	if r.Template == "" {
		return errors.New("linkrules: affiliate_template is required")
	}
	return nil
}

// Source loads the enabled rule set, typically from the database.
type Source interface {
	LoadRules(ctx context.Context) ([]Rule, error)
}

// Store extends Source with the admin write path and the stats counter.
type Store interface {
	Source
	CreateRule(ctx context.Context, r *Rule) error
	ListRules(ctx context.Context) ([]Rule, error)
	CountActive(ctx context.Context) (int, error)
}
