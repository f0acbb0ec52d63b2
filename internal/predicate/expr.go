// Package predicate provides custom targeting predicates written in the
// expr language.
//
// Expressions see the evaluation context as:
//
//	locale    string
//	platform  string
//	version   {major, minor, patch int}
//	stableId  string
//	axes      map[string][]string
//
// For example: `platform == "ios" && version.major >= 2 && "beta" in axes["cohort"]`.
package predicate

import (
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is the expression environment derived from a domain.Context.
type Env struct {
	Locale   string              `expr:"locale"`
	Platform string              `expr:"platform"`
	Version  VersionEnv          `expr:"version"`
	StableID string              `expr:"stableId"`
	Axes     map[string][]string `expr:"axes"`
}

// VersionEnv exposes the context version components.
type VersionEnv struct {
	Major int `expr:"major"`
	Minor int `expr:"minor"`
	Patch int `expr:"patch"`
}

// EnvOf projects ctx into the expression environment.
func EnvOf(ctx domain.Context) Env {
	axes := make(map[string][]string)
	for _, name := range ctx.AxisNames() {
		values, _ := ctx.Axis(name)
		axes[name] = values
	}
	v := ctx.Version()
	return Env{
		Locale:   ctx.Locale(),
		Platform: ctx.Platform(),
		Version:  VersionEnv{Major: v.Major, Minor: v.Minor, Patch: v.Patch},
		StableID: ctx.StableID().String(),
		Axes:     axes,
	}
}

// Expr is a compiled boolean expression implementing domain.ExpressionPredicate.
type Expr struct {
	source  string
	weight  int
	program *vm.Program
}

var _ domain.ExpressionPredicate = (*Expr)(nil)

// Match runs the program. Runtime errors count as a non-match.
func (e *Expr) Match(ctx domain.Context) bool {
	out, err := expr.Run(e.program, EnvOf(ctx))
	if err != nil {
		return false
	}
	matched, _ := out.(bool)
	return matched
}

func (e *Expr) Weight() int        { return e.weight }
func (e *Expr) Expression() string { return e.source }

func (e *Expr) String() string {
	return fmt.Sprintf("expr(%q, weight=%d)", e.source, e.weight)
}

// compile builds the program for source without caching.
func compile(source string) (*vm.Program, error) {
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", source, err)
	}
	return program, nil
}

func validateWeight(weight int) error {
	if weight < 0 {
		return domain.NewValidationError(fmt.Sprintf("predicate weight must not be negative, got %d", weight))
	}
	return nil
}

// New compiles a predicate without going through a Compiler cache.
func New(source string, weight int) (*Expr, error) {
	if err := validateWeight(weight); err != nil {
		return nil, err
	}
	program, err := compile(source)
	if err != nil {
		return nil, domain.NewValidationErrorWithCause("invalid predicate", err)
	}
	return &Expr{source: source, weight: weight, program: program}, nil
}
