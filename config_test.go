package pennant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.HistoryDepth)
	assert.Equal(t, RejectUnknown, cfg.UnknownKeys)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.AdminAddr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative depth", func(c *Config) { c.HistoryDepth = -1 }, "HistoryDepth"},
		{"bad policy", func(c *Config) { c.UnknownKeys = UnknownKeyPolicy(9) }, "UnknownKeys"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "LogFormat"},
		{"zero cache", func(c *Config) { c.PredicateCache.MaxCost = 0 }, "PredicateCache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PENNANT_HISTORY_DEPTH", "4")
	t.Setenv("PENNANT_UNKNOWN_KEYS", "warn")
	t.Setenv("PENNANT_LOG_LEVEL", "debug")
	t.Setenv("PENNANT_LOG_FORMAT", "text")
	t.Setenv("PENNANT_ADMIN_ADDR", "127.0.0.1:9000")
	t.Setenv("PENNANT_PREDICATE_CACHE_MAX_COST", "50")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.HistoryDepth)
	assert.Equal(t, WarnUnknown, cfg.UnknownKeys)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:9000", cfg.AdminAddr)
	assert.Equal(t, int64(50), cfg.PredicateCache.MaxCost)
	assert.Equal(t, int64(100_000), cfg.PredicateCache.NumCounters)
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("PENNANT_UNKNOWN_KEYS", "explode")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)

	t.Setenv("PENNANT_UNKNOWN_KEYS", "reject")
	t.Setenv("PENNANT_HISTORY_DEPTH", "-2")
	_, err = LoadConfigFromEnv()
	assert.True(t, IsConfigError(err))
}
