package config

import (
	"testing"
	"time"

	"affiliateprograms.wiki/internal/entity"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.RuleCacheTTL != 5*time.Minute {
		t.Fatalf("rule cache ttl = %s", cfg.RuleCacheTTL)
	}
	kinds := cfg.SEOKinds()
	if len(kinds) != 2 || kinds[0] != entity.KindProgram || kinds[1] != entity.KindCategory {
		t.Fatalf("seo kinds = %v", kinds)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WIKI_LISTEN_ADDR", ":9090")
	t.Setenv("WIKI_SEO_REQUIRED_KINDS", "network,bogus")
	t.Setenv("WIKI_RULE_CACHE_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.RuleCacheTTL != 30*time.Second {
		t.Fatalf("rule cache ttl = %s", cfg.RuleCacheTTL)
	}

	// Unknown kind names are dropped rather than failing startup.
	kinds := cfg.SEOKinds()
	if len(kinds) != 1 || kinds[0] != entity.KindNetwork {
		t.Fatalf("seo kinds = %v", kinds)
	}
}
