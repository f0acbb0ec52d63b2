package pennant

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/predicate"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
)

// Config holds all configuration for an Engine.
type Config struct {
	// HistoryDepth is the number of prior snapshots each namespace retains
	// for rollback. Zero disables rollback.
	HistoryDepth int `env:"PENNANT_HISTORY_DEPTH" envDefault:"10"`

	// UnknownKeys decides what happens to undeclared toggle keys in a payload
	// for namespaces created with declarations.
	// Options: "reject", "ignore", "warn"
	UnknownKeys codec.UnknownKeyPolicy `env:"PENNANT_UNKNOWN_KEYS" envDefault:"reject"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `env:"PENNANT_LOG_LEVEL" envDefault:"info"`

	// LogFormat is "json" or "text".
	LogFormat string `env:"PENNANT_LOG_FORMAT" envDefault:"json"`

	// AdminAddr is the listen address of the admin HTTP server.
	AdminAddr string `env:"PENNANT_ADMIN_ADDR" envDefault:":8080"`

	// PredicateCache sizes the compiled expression cache.
	PredicateCache predicate.CacheConfig `envPrefix:"PENNANT_PREDICATE_CACHE_"`
}

// DefaultConfig returns recommended default configuration.
func DefaultConfig() Config {
	return Config{
		HistoryDepth:   registry.DefaultHistoryDepth,
		UnknownKeys:    codec.RejectUnknown,
		LogLevel:       "info",
		LogFormat:      "json",
		AdminAddr:      ":8080",
		PredicateCache: predicate.DefaultCacheConfig(),
	}
}

// LoadConfigFromEnv reads PENNANT_* environment variables on top of
// DefaultConfig and validates the result.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.HistoryDepth < 0 {
		return &ConfigError{Field: "HistoryDepth", Message: "must not be negative"}
	}
	switch c.UnknownKeys {
	case codec.RejectUnknown, codec.IgnoreUnknown, codec.WarnUnknown:
	default:
		return &ConfigError{Field: "UnknownKeys", Message: fmt.Sprintf("unsupported policy %s", c.UnknownKeys)}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return &ConfigError{Field: "LogFormat", Message: fmt.Sprintf("must be json or text, got %q", c.LogFormat)}
	}
	if c.PredicateCache.NumCounters <= 0 || c.PredicateCache.MaxCost <= 0 || c.PredicateCache.BufferItems <= 0 {
		return &ConfigError{Field: "PredicateCache", Message: "all sizes must be positive"}
	}
	return nil
}
