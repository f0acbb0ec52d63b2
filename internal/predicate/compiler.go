package predicate

import (
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/dgraph-io/ristretto"
	"github.com/expr-lang/expr/vm"
)

// CacheConfig sizes the compiled program cache.
type CacheConfig struct {
	NumCounters int64 `env:"NUM_COUNTERS" envDefault:"100000"` // Number of counters for admission policy
	MaxCost     int64 `env:"MAX_COST" envDefault:"10000"`      // Maximum number of cached programs
	BufferItems int64 `env:"BUFFER_ITEMS" envDefault:"64"`     // Number of keys per buffer
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	}
}

// Compiler compiles expressions and caches programs by source, so reloading
// an unchanged payload does not recompile every predicate.
type Compiler struct {
	programs *ristretto.Cache
}

// NewCompiler creates a compiler backed by a ristretto cache.
func NewCompiler(cfg CacheConfig) (*Compiler, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}

	return &Compiler{programs: cache}, nil
}

// Compile returns a predicate for source, reusing a cached program if present.
func (c *Compiler) Compile(source string, weight int) (*Expr, error) {
	if err := validateWeight(weight); err != nil {
		return nil, err
	}

	if cached, found := c.programs.Get(source); found {
		if program, ok := cached.(*vm.Program); ok {
			return &Expr{source: source, weight: weight, program: program}, nil
		}
	}

	program, err := compile(source)
	if err != nil {
		return nil, domain.NewValidationErrorWithCause("invalid predicate", err)
	}
	c.programs.Set(source, program, 1)

	return &Expr{source: source, weight: weight, program: program}, nil
}

// Wait blocks until pending cache writes are visible.
func (c *Compiler) Wait() {
	c.programs.Wait()
}

// Metrics returns the underlying cache metrics (nil unless enabled).
func (c *Compiler) Metrics() *ristretto.Metrics {
	return c.programs.Metrics
}

// Close releases the cache.
func (c *Compiler) Close() {
	c.programs.Close()
}
