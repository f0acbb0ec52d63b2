package domain

import "fmt"

// DecisionKind is the closed set of evaluation outcomes.
type DecisionKind int

const (
	// DecisionRegistryDisabled means the namespace kill switch is on.
	DecisionRegistryDisabled DecisionKind = iota
	// DecisionInactive means the flag itself is switched off.
	DecisionInactive
	// DecisionRule means a rule matched and the stable id was in its rollout.
	DecisionRule
	// DecisionDefault means no rule both matched and included the stable id.
	DecisionDefault
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRegistryDisabled:
		return "registry_disabled"
	case DecisionInactive:
		return "inactive"
	case DecisionRule:
		return "rule"
	case DecisionDefault:
		return "default"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Decision is the explainable result of resolving one toggle.
type Decision struct {
	Toggle ToggleID     `json:"toggle"`
	Kind   DecisionKind `json:"kind"`
	Value  any          `json:"value"`

	// Rule is set only for DecisionRule.
	Rule *RuleMatch `json:"rule,omitempty"`
}

// RuleMatch identifies the rule that produced a value.
type RuleMatch struct {
	// Index is the rule's position in authored order.
	Index       int    `json:"index"`
	Specificity int    `json:"specificity"`
	Bucket      int    `json:"bucket"`
	Note        string `json:"note,omitempty"`
}

// Matched reports whether a rule produced the value.
func (d Decision) Matched() bool {
	return d.Kind == DecisionRule
}
