// Package pennant is a deterministic, type-checked configuration engine.
//
// Configuration is organised into namespaces. Each namespace holds an
// immutable snapshot of toggle definitions that is swapped atomically on
// reload, keeps a bounded rollback history, and has a kill switch that forces
// every toggle to its default. Resolution picks the most specific matching
// rule and places a stable id in a rollout bucket derived from SHA-256, so
// the same inputs always produce the same value.
package pennant

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/logging"
	"github.com/OrlandoBitencourt/pennant/internal/predicate"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Engine is the main entry point. It is safe for concurrent use.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	telemetry telemetry.Provider
	values    *codec.ValueCodecs
	compiler  *predicate.Compiler
	evaluator evaluator.Evaluator

	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	registry *registry.Registry
	codec    *codec.Codec
}

// New creates an engine with the given options.
//
// Example:
//
//	engine, err := pennant.New(pennant.WithHistoryDepth(5))
//	if err != nil { ... }
//	_ = engine.Namespace("checkout")
//	_, err = engine.LoadPayload(ctx, "checkout", payload)
func New(opts ...Option) (*Engine, error) {
	ec := &engineConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(ec); err != nil {
			return nil, err
		}
	}
	if err := ec.cfg.Validate(); err != nil {
		return nil, err
	}

	if ec.logger == nil {
		ec.logger = logging.New(ec.cfg.LogLevel, ec.cfg.LogFormat, os.Stderr)
	}
	if ec.telemetry == nil {
		ec.telemetry = telemetry.NewNoOp()
	}

	values := codec.NewValueCodecs()
	for _, tc := range ec.codecs {
		if err := values.Register(tc.tag, tc.codec); err != nil {
			return nil, &ConfigError{Field: "ValueCodec", Message: err.Error()}
		}
	}

	compiler, err := predicate.NewCompiler(ec.cfg.PredicateCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create predicate compiler: %w", err)
	}

	return &Engine{
		cfg:        ec.cfg,
		logger:     ec.logger,
		telemetry:  ec.telemetry,
		values:     values,
		compiler:   compiler,
		evaluator:  evaluator.New(),
		namespaces: make(map[string]*namespace),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Close releases the predicate cache and shuts down telemetry.
func (e *Engine) Close(ctx context.Context) error {
	e.compiler.Close()
	return e.telemetry.Shutdown(ctx)
}

// Namespace registers a namespace holding an empty snapshot. With decls the
// namespace only accepts the declared keys, each pinned to its type, and
// other keys are handled by the configured UnknownKeyPolicy.
//
// Registering an existing namespace again without declarations is a no-op.
func (e *Engine) Namespace(id string, decls ...Declaration) error {
	if id == "" {
		return domain.NewValidationError("namespace cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.namespaces[id]; exists {
		if len(decls) > 0 {
			return domain.NewValidationError(fmt.Sprintf("namespace %s is already registered", id))
		}
		return nil
	}

	opts := []codec.Option{
		codec.WithValueCodecs(e.values),
		codec.WithCompiler(e.compiler),
		codec.WithUnknownKeyPolicy(e.cfg.UnknownKeys),
		codec.WithLogger(e.logger),
	}
	if len(decls) > 0 {
		opts = append(opts, codec.WithDeclarations(decls...))
	}

	e.namespaces[id] = &namespace{
		registry: registry.New(id, registry.WithHistoryDepth(e.cfg.HistoryDepth)),
		codec:    codec.New(id, opts...),
	}
	e.telemetry.RecordKillSwitch(context.Background(), id, true)
	e.logger.Debug("namespace registered", "namespace", id, "declared", len(decls))
	return nil
}

// Namespaces lists registered namespaces in sorted order.
func (e *Engine) Namespaces() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.namespaces))
}

func (e *Engine) lookup(id string) (*namespace, error) {
	e.mu.RLock()
	ns, ok := e.namespaces[id]
	e.mu.RUnlock()
	if !ok {
		return nil, domain.NewNotFoundError("namespace", id)
	}
	return ns, nil
}

// Expression compiles an expr-language predicate for use with Custom.
// Programs are cached by source.
func (e *Engine) Expression(source string, weight int) (Predicate, error) {
	p, err := e.compiler.Compile(source, weight)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Explain resolves id and returns the full decision. A toggle missing from
// the current snapshot returns a *NotFoundError.
func (e *Engine) Explain(ctx context.Context, id ToggleID, evalCtx Context) (Decision, error) {
	d, _, err := e.resolve(ctx, id, evalCtx)
	return d, err
}

// Evaluate resolves id and returns only its value.
func (e *Engine) Evaluate(ctx context.Context, id ToggleID, evalCtx Context) (any, error) {
	d, _, err := e.resolve(ctx, id, evalCtx)
	if err != nil {
		return nil, err
	}
	return d.Value, nil
}

func (e *Engine) resolve(ctx context.Context, id ToggleID, evalCtx Context) (Decision, ValueType, error) {
	ns, err := e.lookup(id.Namespace)
	if err != nil {
		return Decision{}, ValueType{}, err
	}

	start := time.Now()
	view := ns.registry.View()
	d, err := e.evaluator.Evaluate(view.Snapshot, view.Enabled, id, evalCtx)
	if err != nil {
		return Decision{}, ValueType{}, err
	}

	e.telemetry.RecordEvaluation(ctx, id.String(), d.Kind.String(), time.Since(start))
	def, _ := view.Snapshot.Get(id)
	return d, def.Type(), nil
}

// Value resolves id and returns its value as T.
//
// T must match the toggle's runtime representation (bool, string, int64,
// float64, or the custom codec's type). A mismatch is a programming error
// and panics with a *TypeMismatchError.
func Value[T any](ctx context.Context, e *Engine, id ToggleID, evalCtx Context) (T, error) {
	d, vt, err := e.resolve(ctx, id, evalCtx)
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := d.Value.(T)
	if !ok {
		var zero T
		panic(&TypeMismatchError{Toggle: id, Declared: vt, Wanted: fmt.Sprintf("%T", zero)})
	}
	return v, nil
}

// Bool evaluates a boolean toggle. fallback is returned only when the toggle
// does not exist.
func (e *Engine) Bool(ctx context.Context, id ToggleID, evalCtx Context, fallback bool) bool {
	return valueOr(ctx, e, id, evalCtx, fallback)
}

// String evaluates a string or enum toggle.
func (e *Engine) String(ctx context.Context, id ToggleID, evalCtx Context, fallback string) string {
	return valueOr(ctx, e, id, evalCtx, fallback)
}

// Int evaluates an integer toggle.
func (e *Engine) Int(ctx context.Context, id ToggleID, evalCtx Context, fallback int64) int64 {
	return valueOr(ctx, e, id, evalCtx, fallback)
}

// Float evaluates a float toggle.
func (e *Engine) Float(ctx context.Context, id ToggleID, evalCtx Context, fallback float64) float64 {
	return valueOr(ctx, e, id, evalCtx, fallback)
}

func valueOr[T any](ctx context.Context, e *Engine, id ToggleID, evalCtx Context, fallback T) T {
	v, err := Value[T](ctx, e, id, evalCtx)
	if err != nil {
		e.logger.Debug("toggle not found, using fallback", "toggle", id.String())
		return fallback
	}
	return v
}

// Analyze describes the resolution order of a toggle's rules.
func (e *Engine) Analyze(namespace, key string) (FlagAnalysis, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return FlagAnalysis{}, err
	}
	id := domain.NewToggleID(namespace, key)
	def, ok := ns.registry.Current().Get(id)
	if !ok {
		return FlagAnalysis{}, domain.NewNotFoundError("toggle", id.String())
	}
	return evaluator.Analyze(def), nil
}
