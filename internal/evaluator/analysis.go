package evaluator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// FlagAnalysis describes how a definition will be resolved
type FlagAnalysis struct {
	Toggle  domain.ToggleID `json:"toggle"`
	Type    string          `json:"type"`
	Active  bool            `json:"active"`
	Salt    string          `json:"salt"`
	Default any             `json:"default"`
	Rules   []RuleAnalysis  `json:"rules"`
}

// RuleAnalysis describes one rule in resolution order
type RuleAnalysis struct {
	Position    int      `json:"position"`
	Index       int      `json:"index"`
	Specificity int      `json:"specificity"`
	Rollout     float64  `json:"rollout"`
	Salt        string   `json:"salt"`
	Dimensions  []string `json:"dimensions"`
	Note        string   `json:"note,omitempty"`
}

// Analyze lists the rules of def in the order Resolve tries them.
func Analyze(def *domain.FlagDefinition) FlagAnalysis {
	analysis := FlagAnalysis{
		Toggle:  def.ID(),
		Type:    def.Type().String(),
		Active:  def.Active(),
		Salt:    def.Salt(),
		Default: def.Default(),
	}

	for pos, r := range def.Ranked() {
		salt := def.Salt()
		if override, ok := r.Rule.Salt(); ok {
			salt = override
		}

		analysis.Rules = append(analysis.Rules, RuleAnalysis{
			Position:    pos,
			Index:       r.Index,
			Specificity: r.Specificity,
			Rollout:     r.Rule.Rollout(),
			Salt:        salt,
			Dimensions:  dimensions(r.Rule.Targeting()),
			Note:        r.Rule.Note(),
		})
	}

	return analysis
}

// dimensions names the constrained dimensions of t
func dimensions(t domain.Targeting) []string {
	var dims []string

	if locales := t.Locales(); len(locales) > 0 {
		dims = append(dims, fmt.Sprintf("locale in %v", locales))
	}
	if platforms := t.Platforms(); len(platforms) > 0 {
		dims = append(dims, fmt.Sprintf("platform in %v", platforms))
	}
	if vr := t.VersionRange(); vr.Kind() != domain.RangeUnbounded {
		dims = append(dims, "version "+vr.String())
	}
	axes := t.Axes()
	for _, name := range slices.Sorted(maps.Keys(axes)) {
		dims = append(dims, fmt.Sprintf("axis %s in %v", name, axes[name]))
	}
	if p := t.Custom(); p != nil {
		if e, ok := p.(domain.ExpressionPredicate); ok {
			dims = append(dims, fmt.Sprintf("custom %q (+%d)", e.Expression(), p.Weight()))
		} else {
			dims = append(dims, fmt.Sprintf("custom (+%d)", p.Weight()))
		}
	}

	return dims
}
