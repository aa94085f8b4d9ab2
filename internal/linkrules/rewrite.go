package linkrules

import (
	neturl "net/url"
	"sort"
	"strings"

	"affiliateprograms.wiki/internal/obs"
)

// Result classifies the outcome of one rewrite call.
type Result string

const (
	ResultRewritten   Result = "rewritten"
	ResultPassthrough Result = "passthrough"
	ResultException   Result = "exception"
)

// Rewriter evaluates a frozen rule set. It is a pure function of
// (url, rule set): no network, no database, no clock. Construct a new
// Rewriter to change rules.
type Rewriter struct {
	rules []Rule // enabled, priority desc, id asc
}

// NewRewriter snapshots the enabled rules in evaluation order.
func NewRewriter(rules []Rule) *Rewriter {
	enabled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.Slice(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].ID < enabled[j].ID
	})
	return &Rewriter{rules: enabled}
}

// Len reports how many enabled rules the set holds.
func (rw *Rewriter) Len() int { return len(rw.rules) }

// Rewrite maps an outbound URL to its affiliate-tracked equivalent, or
// returns the input unchanged when nothing applies. Total: every input,
// valid or not, produces some output and never an error.
func (rw *Rewriter) Rewrite(raw string) string {
	out, result := rw.rewrite(raw)
	obs.ObserveRewrite(string(result))
	return out
}

func (rw *Rewriter) rewrite(raw string) (string, Result) {
	if raw == "" {
		return raw, ResultPassthrough
	}
	parsed, err := neturl.Parse(raw)
	if err != nil {
		return raw, ResultPassthrough
	}
	host := parsed.Hostname()
	if host == "" {
		return raw, ResultPassthrough
	}
	p := parsed.Path

	sawException := false
	for _, rule := range rw.rules {
		if !domainMatches(rule.MatchDomain, host) {
			continue
		}
		if !pathMatches(rule.MatchPath, p) {
			continue
		}
		if isException(p, rule.ExceptionPaths) {
			sawException = true
			continue
		}
		return applyTemplate(raw, rule), ResultRewritten
	}
	if sawException {
		return raw, ResultException
	}
	return raw, ResultPassthrough
}

// applyTemplate substitutes the rule's placeholders into its template.
func applyTemplate(raw string, rule Rule) string {
	utmSource := rule.UTMSource
	if utmSource == "" {
		utmSource = DefaultUTMSource
	}
	utmMedium := rule.UTMMedium
	if utmMedium == "" {
		utmMedium = DefaultUTMMedium
	}
	return strings.NewReplacer(
		"{url}", neturl.QueryEscape(raw),
		"{url_raw}", raw,
		"{tag}", rule.DefaultTag,
		"{utm_source}", utmSource,
		"{utm_medium}", utmMedium,
		"{utm_campaign}", rule.UTMCampaign,
	).Replace(rule.Template)
}
