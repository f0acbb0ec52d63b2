package pennant

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Option configures an Engine.
type Option func(*engineConfig) error

type engineConfig struct {
	cfg       Config
	logger    *slog.Logger
	telemetry telemetry.Provider
	codecs    []taggedCodec
}

type taggedCodec struct {
	tag   string
	codec ValueCodec
}

// WithConfig applies a full Config struct.
// Options after it override individual fields.
func WithConfig(cfg Config) Option {
	return func(c *engineConfig) error {
		c.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger. Default: built from Config.LogLevel and
// Config.LogFormat, writing to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTelemetry sets the telemetry provider. Default: no-op.
func WithTelemetry(p telemetry.Provider) Option {
	return func(c *engineConfig) error {
		if p == nil {
			return errors.New("telemetry provider cannot be nil")
		}
		c.telemetry = p
		return nil
	}
}

// WithValueCodec registers the codec for custom value types tagged tag.
//
// Example:
//
//	engine, err := pennant.New(
//	    pennant.WithValueCodec("banner", pennant.JSONCodec[Banner]()),
//	)
func WithValueCodec(tag string, vc ValueCodec) Option {
	return func(c *engineConfig) error {
		if tag == "" {
			return &ConfigError{Field: "ValueCodec", Message: "tag cannot be empty"}
		}
		if vc == nil {
			return &ConfigError{Field: "ValueCodec", Message: fmt.Sprintf("codec for %q cannot be nil", tag)}
		}
		c.codecs = append(c.codecs, taggedCodec{tag: tag, codec: vc})
		return nil
	}
}

// WithHistoryDepth sets how many prior snapshots each namespace keeps.
// Default: 10
func WithHistoryDepth(depth int) Option {
	return func(c *engineConfig) error {
		if depth < 0 {
			return &ConfigError{Field: "HistoryDepth", Message: "must not be negative"}
		}
		c.cfg.HistoryDepth = depth
		return nil
	}
}

// WithUnknownKeyPolicy sets how undeclared payload keys are handled.
// Default: RejectUnknown
func WithUnknownKeyPolicy(p UnknownKeyPolicy) Option {
	return func(c *engineConfig) error {
		switch p {
		case codec.RejectUnknown, codec.IgnoreUnknown, codec.WarnUnknown:
			c.cfg.UnknownKeys = p
			return nil
		default:
			return &ConfigError{Field: "UnknownKeys", Message: fmt.Sprintf("unsupported policy %s", p)}
		}
	}
}
