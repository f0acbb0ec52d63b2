package pennant

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/logging"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// TestWithHistoryDepth tests history depth validation
func TestWithHistoryDepth(t *testing.T) {
	tests := []struct {
		name    string
		depth   int
		wantErr bool
	}{
		{name: "default depth", depth: 10},
		{name: "disabled history", depth: 0},
		{name: "negative depth", depth: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &engineConfig{cfg: DefaultConfig()}
			err := WithHistoryDepth(tt.depth)(cfg)

			if tt.wantErr {
				assert.True(t, IsConfigError(err))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.depth, cfg.cfg.HistoryDepth)
			}
		})
	}
}

// TestWithUnknownKeyPolicy tests policy validation
func TestWithUnknownKeyPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  UnknownKeyPolicy
		wantErr bool
	}{
		{name: "reject", policy: RejectUnknown},
		{name: "ignore", policy: IgnoreUnknown},
		{name: "warn", policy: WarnUnknown},
		{name: "unsupported", policy: UnknownKeyPolicy(42), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &engineConfig{cfg: DefaultConfig()}
			err := WithUnknownKeyPolicy(tt.policy)(cfg)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.policy, cfg.cfg.UnknownKeys)
			}
		})
	}
}

// TestWithLogger tests logger injection
func TestWithLogger(t *testing.T) {
	cfg := &engineConfig{}
	assert.Error(t, WithLogger(nil)(cfg))

	logger := logging.Discard()
	require.NoError(t, WithLogger(logger)(cfg))
	assert.Same(t, logger, cfg.logger)
}

// TestWithTelemetry tests telemetry injection
func TestWithTelemetry(t *testing.T) {
	cfg := &engineConfig{}
	assert.Error(t, WithTelemetry(nil)(cfg))

	p := telemetry.NewNoOp()
	require.NoError(t, WithTelemetry(p)(cfg))
	assert.Equal(t, p, cfg.telemetry)
}

// TestWithValueCodec tests custom codec registration
func TestWithValueCodec(t *testing.T) {
	cfg := &engineConfig{}

	assert.True(t, IsConfigError(WithValueCodec("", JSONCodec[string]())(cfg)))
	assert.True(t, IsConfigError(WithValueCodec("banner", nil)(cfg)))

	require.NoError(t, WithValueCodec("banner", JSONCodec[string]())(cfg))
	require.Len(t, cfg.codecs, 1)
	assert.Equal(t, "banner", cfg.codecs[0].tag)
}

// TestWithConfig tests that later options override a full config
func TestWithConfig(t *testing.T) {
	custom := DefaultConfig()
	custom.HistoryDepth = 3
	custom.LogFormat = "text"

	e, err := New(WithConfig(custom), WithHistoryDepth(7), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(t.Context()) })

	assert.Equal(t, 7, e.Config().HistoryDepth)
	assert.Equal(t, "text", e.Config().LogFormat)
}

// TestNew_InvalidOptions tests that option and config errors surface from New
func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithHistoryDepth(-1))
	assert.True(t, IsConfigError(err))

	bad := DefaultConfig()
	bad.LogFormat = "xml"
	_, err = New(WithConfig(bad))
	assert.True(t, IsConfigError(err))
}
