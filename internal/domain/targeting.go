package domain

import (
	"maps"
	"reflect"
	"slices"
)

// Predicate is an opaque custom targeting condition with a declared
// specificity weight.
type Predicate interface {
	Match(ctx Context) bool
	Weight() int
}

// ExpressionPredicate is a Predicate backed by serialisable source text.
// Only these survive an encode/decode round trip.
type ExpressionPredicate interface {
	Predicate
	Expression() string
}

// Targeting is a declarative constraint set. Empty dimensions match anything.
type Targeting struct {
	locales   []string
	platforms []string
	versions  VersionRange
	axes      map[string][]string
	custom    Predicate
}

// TargetingOption configures a Targeting.
type TargetingOption func(*Targeting)

// Locales restricts the rule to the given locale tags.
func Locales(locales ...string) TargetingOption {
	return func(t *Targeting) {
		t.locales = normalizeSet(append(t.locales, locales...))
	}
}

// Platforms restricts the rule to the given platform tags.
func Platforms(platforms ...string) TargetingOption {
	return func(t *Targeting) {
		t.platforms = normalizeSet(append(t.platforms, platforms...))
	}
}

// Versions restricts the rule to an application version range.
func Versions(r VersionRange) TargetingOption {
	return func(t *Targeting) {
		t.versions = r
	}
}

// AxisIn requires the context's axis to share at least one value with values.
// An empty value set leaves the axis unconstrained.
func AxisIn(name string, values ...string) TargetingOption {
	return func(t *Targeting) {
		set := normalizeSet(values)
		if name == "" || len(set) == 0 {
			return
		}
		if t.axes == nil {
			t.axes = make(map[string][]string)
		}
		t.axes[name] = normalizeSet(append(t.axes[name], set...))
	}
}

// Custom attaches an opaque predicate.
func Custom(p Predicate) TargetingOption {
	return func(t *Targeting) {
		t.custom = p
	}
}

// NewTargeting builds a constraint set from options.
func NewTargeting(opts ...TargetingOption) Targeting {
	var t Targeting
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t Targeting) Locales() []string          { return slices.Clone(t.locales) }
func (t Targeting) Platforms() []string        { return slices.Clone(t.platforms) }
func (t Targeting) VersionRange() VersionRange { return t.versions }
func (t Targeting) Custom() Predicate          { return t.custom }

// Axes returns a copy of the axis constraints.
func (t Targeting) Axes() map[string][]string {
	out := make(map[string][]string, len(t.axes))
	for k, v := range t.axes {
		out[k] = slices.Clone(v)
	}
	return out
}

// Matches reports whether every constrained dimension accepts ctx.
func (t Targeting) Matches(ctx Context) bool {
	if len(t.locales) > 0 && !containsSorted(t.locales, ctx.Locale()) {
		return false
	}
	if len(t.platforms) > 0 && !containsSorted(t.platforms, ctx.Platform()) {
		return false
	}
	if !t.versions.Contains(ctx.Version()) {
		return false
	}
	for name, want := range t.axes {
		if !ctx.axisIntersects(name, want) {
			return false
		}
	}
	if t.custom != nil && !t.custom.Match(ctx) {
		return false
	}
	return true
}

// Specificity is the additive narrowness score used to rank rules.
func (t Targeting) Specificity() int {
	score := t.versions.Specificity()
	if len(t.locales) > 0 {
		score++
	}
	if len(t.platforms) > 0 {
		score++
	}
	score += len(t.axes)
	if t.custom != nil {
		score += t.custom.Weight()
	}
	return score
}

// Equal reports value equality. Expression predicates compare by source and
// weight; other predicates must be deeply equal.
func (t Targeting) Equal(other Targeting) bool {
	if !slices.Equal(t.locales, other.locales) || !slices.Equal(t.platforms, other.platforms) {
		return false
	}
	if t.versions != other.versions {
		return false
	}
	if !maps.EqualFunc(t.axes, other.axes, slices.Equal[[]string]) {
		return false
	}
	return predicateEqual(t.custom, other.custom)
}

func predicateEqual(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, okA := a.(ExpressionPredicate)
	eb, okB := b.(ExpressionPredicate)
	if okA && okB {
		return ea.Expression() == eb.Expression() && ea.Weight() == eb.Weight()
	}
	return reflect.DeepEqual(a, b)
}

func containsSorted(set []string, v string) bool {
	_, found := slices.BinarySearch(set, v)
	return found
}
