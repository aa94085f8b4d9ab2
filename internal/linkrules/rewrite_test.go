package linkrules

import (
	neturl "net/url"
	"strings"
	"testing"
)

func TestDomainMatches(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"example.com", "www.example.com", true},
		{"www.example.com", "example.com", true},
		{"example.com", "shop.example.com", false},
		{"Example.COM", "example.com", true},

		{"*.example.com", "example.com", true},
		{"*.example.com", "shop.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "notexample.com", false},

		{"example.*", "example.com", true},
		{"example.*", "example.org", true},
		{"example.*", "example.co.uk", false},
		{"example.*", "shop.example.com", false},

		{"", "example.com", false},
		{"example.com", "", false},
	}
	for _, tc := range cases {
		if got := domainMatches(tc.pattern, tc.host); got != tc.want {
			t.Errorf("domainMatches(%q, %q) = %v, want %v", tc.pattern, tc.host, got, tc.want)
		}
	}
}

func TestRewriteBasic(t *testing.T) {
	rw := NewRewriter([]Rule{{
		ID:          1,
		MatchDomain: "example.com",
		Template:    "https://go.example.net/deep?url={url}&tag={tag}&src={utm_source}&med={utm_medium}",
		DefaultTag:  "wiki-21",
		Enabled:     true,
	}})

	got := rw.Rewrite("https://example.com/product/123")
	if !strings.Contains(got, "url="+neturl.QueryEscape("https://example.com/product/123")) {
		t.Fatalf("url placeholder not encoded: %s", got)
	}
	if !strings.Contains(got, "tag=wiki-21") {
		t.Fatalf("tag not substituted: %s", got)
	}
	if !strings.Contains(got, "src="+DefaultUTMSource) || !strings.Contains(got, "med="+DefaultUTMMedium) {
		t.Fatalf("utm defaults not substituted: %s", got)
	}
}

func TestRewriteWWWEquivalence(t *testing.T) {
	rw := NewRewriter([]Rule{{
		ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url_raw}", Enabled: true,
	}})

	bare := rw.Rewrite("https://example.com/x")
	www := rw.Rewrite("https://www.example.com/x")
	if !strings.HasPrefix(bare, "https://t.example.net/") || !strings.HasPrefix(www, "https://t.example.net/") {
		t.Fatalf("both host spellings must select the rule: bare=%s www=%s", bare, www)
	}
}

func TestRewriteExceptionPath(t *testing.T) {
	rw := NewRewriter([]Rule{{
		ID:             1,
		MatchDomain:    "shop.example.com",
		Template:       "https://t.example.net/?u={url_raw}",
		ExceptionPaths: []string{"/login"},
		Enabled:        true,
	}})

	in := "https://shop.example.com/login"
	if got := rw.Rewrite(in); got != in {
		t.Fatalf("exception path must pass through, got %s", got)
	}
	if got := rw.Rewrite("https://shop.example.com/deals"); got == "https://shop.example.com/deals" {
		t.Fatal("non-exception path must be rewritten")
	}
}

func TestRewriteExceptionFallsToNextRule(t *testing.T) {
	rules := []Rule{
		{ID: 1, MatchDomain: "shop.example.com", Template: "https://high.example.net/?u={url_raw}",
			ExceptionPaths: []string{"/login"}, Priority: 100, Enabled: true},
		{ID: 2, MatchDomain: "*.example.com", Template: "https://low.example.net/?u={url_raw}",
			Priority: 50, Enabled: true},
	}
	rw := NewRewriter(rules)

	if got := rw.Rewrite("https://shop.example.com/login"); !strings.HasPrefix(got, "https://low.example.net/") {
		t.Fatalf("exception on the high-priority rule must fall to the next rule, got %s", got)
	}
}

func TestRewritePriorityAndTieBreak(t *testing.T) {
	rules := []Rule{
		{ID: 7, MatchDomain: "example.com", Template: "https://fifty.example.net/?u={url_raw}", Priority: 50, Enabled: true},
		{ID: 9, MatchDomain: "example.com", Template: "https://hundred.example.net/?u={url_raw}", Priority: 100, Enabled: true},
	}
	rw := NewRewriter(rules)
	if got := rw.Rewrite("https://example.com/x"); !strings.HasPrefix(got, "https://hundred.example.net/") {
		t.Fatalf("priority 100 must beat 50, got %s", got)
	}

	tied := []Rule{
		{ID: 12, MatchDomain: "example.com", Template: "https://second.example.net/?u={url_raw}", Priority: 10, Enabled: true},
		{ID: 3, MatchDomain: "example.com", Template: "https://first.example.net/?u={url_raw}", Priority: 10, Enabled: true},
	}
	rw = NewRewriter(tied)
	if got := rw.Rewrite("https://example.com/x"); !strings.HasPrefix(got, "https://first.example.net/") {
		t.Fatalf("ties must break toward the lowest id, got %s", got)
	}
}

func TestRewriteTotality(t *testing.T) {
	rw := NewRewriter([]Rule{{ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: true}})

	for _, in := range []string{"", "not a url", "://broken", "/relative/only", "mailto:x@example.com"} {
		if got := rw.Rewrite(in); got != in {
			t.Fatalf("malformed input %q must pass through, got %q", in, got)
		}
	}
}

func TestRewriteIsPureAndIdempotentOnMisses(t *testing.T) {
	rw := NewRewriter([]Rule{{
		ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: true,
	}})

	in := "https://example.com/x"
	first := rw.Rewrite(in)
	second := rw.Rewrite(in)
	if first != second {
		t.Fatalf("same input, same rule set, different output: %s vs %s", first, second)
	}

	// The rewritten URL points at a domain no rule matches, so a second
	// pass leaves it alone.
	if again := rw.Rewrite(first); again != first {
		t.Fatalf("re-rewriting an already rewritten URL changed it: %s -> %s", first, again)
	}
}

func TestRewriteDisabledRulesIgnored(t *testing.T) {
	rw := NewRewriter([]Rule{{ID: 1, MatchDomain: "example.com", Template: "https://t.example.net/?u={url}", Enabled: false}})
	in := "https://example.com/x"
	if got := rw.Rewrite(in); got != in {
		t.Fatalf("disabled rule applied: %s", got)
	}
}

func TestRewritePathPattern(t *testing.T) {
	rw := NewRewriter([]Rule{{
		ID: 1, MatchDomain: "example.com", MatchPath: "/product/*",
		Template: "https://t.example.net/?u={url_raw}", Enabled: true,
	}})

	if got := rw.Rewrite("https://example.com/product/123"); got == "https://example.com/product/123" {
		t.Fatal("matching path must be rewritten")
	}
	in := "https://example.com/about"
	if got := rw.Rewrite(in); got != in {
		t.Fatalf("non-matching path must pass through, got %s", got)
	}
}
