package domain

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
)

// DefaultSalt is the bucketing salt used when a flag does not declare one.
const DefaultSalt = "v1"

// ToggleID identifies a toggle inside a namespace.
type ToggleID struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

// NewToggleID creates a toggle identity.
func NewToggleID(namespace, key string) ToggleID {
	return ToggleID{Namespace: namespace, Key: key}
}

func (id ToggleID) String() string {
	return id.Namespace + "/" + id.Key
}

// Validate validates the identity components
func (id ToggleID) Validate() error {
	if id.Namespace == "" {
		return NewValidationError("toggle namespace cannot be empty")
	}
	if id.Key == "" {
		return NewValidationError("toggle key cannot be empty")
	}
	return nil
}

// Rule pairs a constraint set with a rollout percentage and an output value.
type Rule struct {
	targeting Targeting
	rollout   float64
	salt      string
	value     any
	note      string
}

// RuleOption configures a Rule.
type RuleOption func(*Rule)

// WithRollout sets the rollout percentage (0-100, fractions allowed). Default 100.
func WithRollout(percent float64) RuleOption {
	return func(r *Rule) { r.rollout = percent }
}

// WithRuleSalt overrides the flag salt for this rule's bucketing.
func WithRuleSalt(salt string) RuleOption {
	return func(r *Rule) { r.salt = salt }
}

// WithNote attaches a human-readable note.
func WithNote(note string) RuleOption {
	return func(r *Rule) { r.note = note }
}

// NewRule creates a rule returning value when targeting matches.
func NewRule(value any, targeting Targeting, opts ...RuleOption) (Rule, error) {
	r := Rule{targeting: targeting, rollout: 100, value: value}
	for _, opt := range opts {
		opt(&r)
	}

	if math.IsNaN(r.rollout) || r.rollout < 0 || r.rollout > 100 {
		return Rule{}, NewValidationError(fmt.Sprintf("rule rollout must be between 0 and 100, got %v", r.rollout))
	}

	return r, nil
}

func (r Rule) Targeting() Targeting { return r.targeting }
func (r Rule) Rollout() float64     { return r.rollout }
func (r Rule) Value() any           { return r.value }
func (r Rule) Note() string         { return r.note }

// Salt returns the rule's salt override, if any.
func (r Rule) Salt() (string, bool) { return r.salt, r.salt != "" }

func (r Rule) Specificity() int { return r.targeting.Specificity() }

// Equal reports value equality.
func (r Rule) Equal(other Rule) bool {
	return r.rollout == other.rollout &&
		r.salt == other.salt &&
		r.note == other.note &&
		reflect.DeepEqual(r.value, other.value) &&
		r.targeting.Equal(other.targeting)
}

// RankedRule is a rule together with its authored index and score.
type RankedRule struct {
	Index       int
	Specificity int
	Rule        Rule
}

// FlagDefinition is the compiled, immutable form of one toggle.
type FlagDefinition struct {
	id           ToggleID
	valueType    ValueType
	defaultValue any
	rules        []Rule
	ranked       []RankedRule
	salt         string
	active       bool
}

// FlagOption configures a FlagDefinition.
type FlagOption func(*FlagDefinition)

// WithRules sets the authored rule sequence.
func WithRules(rules ...Rule) FlagOption {
	return func(f *FlagDefinition) { f.rules = append(f.rules, rules...) }
}

// WithSalt sets the flag salt. Empty means DefaultSalt.
func WithSalt(salt string) FlagOption {
	return func(f *FlagDefinition) { f.salt = salt }
}

// WithActive sets the active flag. Flags are active by default.
func WithActive(active bool) FlagOption {
	return func(f *FlagDefinition) { f.active = active }
}

// NewFlagDefinition validates and compiles a toggle definition. The default
// value and every rule value must satisfy valueType.
func NewFlagDefinition(id ToggleID, valueType ValueType, defaultValue any, opts ...FlagOption) (*FlagDefinition, error) {
	f := &FlagDefinition{
		id:           id,
		valueType:    valueType,
		defaultValue: defaultValue,
		salt:         DefaultSalt,
		active:       true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.salt == "" {
		f.salt = DefaultSalt
	}

	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := valueType.Check(defaultValue); err != nil {
		return nil, NewValidationErrorWithCause(fmt.Sprintf("flag %s default value", id), err)
	}
	for i, r := range f.rules {
		if err := valueType.Check(r.value); err != nil {
			return nil, NewValidationErrorWithCause(fmt.Sprintf("flag %s rule %d value", id, i), err)
		}
	}

	f.rules = slices.Clone(f.rules)
	f.ranked = rank(f.rules)
	return f, nil
}

// rank orders rules by specificity descending; ties keep authored order.
func rank(rules []Rule) []RankedRule {
	ranked := make([]RankedRule, len(rules))
	for i, r := range rules {
		ranked[i] = RankedRule{Index: i, Specificity: r.Specificity(), Rule: r}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Specificity > ranked[b].Specificity
	})
	return ranked
}

func (f *FlagDefinition) ID() ToggleID    { return f.id }
func (f *FlagDefinition) Type() ValueType { return f.valueType }
func (f *FlagDefinition) Default() any    { return f.defaultValue }
func (f *FlagDefinition) Salt() string    { return f.salt }
func (f *FlagDefinition) Active() bool    { return f.active }
func (f *FlagDefinition) Rules() []Rule   { return slices.Clone(f.rules) }
func (f *FlagDefinition) RuleCount() int  { return len(f.rules) }
func (f *FlagDefinition) Rule(i int) Rule { return f.rules[i] }

// Ranked returns the rules in resolution order.
func (f *FlagDefinition) Ranked() []RankedRule { return slices.Clone(f.ranked) }

// EachRanked walks the rules in resolution order without copying.
func (f *FlagDefinition) EachRanked(fn func(RankedRule) bool) {
	for _, r := range f.ranked {
		if !fn(r) {
			return
		}
	}
}

// Equal reports value equality.
func (f *FlagDefinition) Equal(other *FlagDefinition) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.id == other.id &&
		f.valueType.Equal(other.valueType) &&
		reflect.DeepEqual(f.defaultValue, other.defaultValue) &&
		f.salt == other.salt &&
		f.active == other.active &&
		slices.EqualFunc(f.rules, other.rules, Rule.Equal)
}
