package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"affiliateprograms.wiki/internal/entity"
)

// Config carries every runtime knob for the editorial service. Values come
// from the environment, optionally overridden by a YAML file pointed at by
// WIKI_CONFIG_FILE.
type Config struct {
	ListenAddr  string `yaml:"listen_addr" env:"WIKI_LISTEN_ADDR" env-default:":8080"`
	DatabaseDSN string `yaml:"database_dsn" env:"WIKI_PG_DSN"`

	// SEO-gated entity kinds route approved proposals through pending_seo.
	SEORequiredKinds []string `yaml:"seo_required_kinds" env:"WIKI_SEO_REQUIRED_KINDS" env-separator:"," env-default:"program,category"`

	RuleCacheTTL  time.Duration `yaml:"rule_cache_ttl" env:"WIKI_RULE_CACHE_TTL" env-default:"5m"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" env:"WIKI_VERIFY_TIMEOUT" env-default:"10s"`

	// Per-IP HTTP limiter in front of the per-key registry limits.
	HTTPRateBurst  int `yaml:"http_rate_burst" env:"WIKI_HTTP_RATE_BURST" env-default:"50"`
	HTTPRatePerSec int `yaml:"http_rate_per_sec" env:"WIKI_HTTP_RATE_PER_SEC" env-default:"25"`

	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"WIKI_MAX_BODY_BYTES" env-default:"1048576"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"WIKI_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WIKI_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"WIKI_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"WIKI_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load reads configuration from the environment and, when WIKI_CONFIG_FILE
// is set, from that file first.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("WIKI_CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SEOKinds converts the configured kind names, dropping unknown ones.
func (c Config) SEOKinds() []entity.Kind {
	var out []entity.Kind
	for _, raw := range c.SEORequiredKinds {
		k := entity.Kind(raw)
		if k.Valid() {
			out = append(out, k)
		}
	}
	return out
}
