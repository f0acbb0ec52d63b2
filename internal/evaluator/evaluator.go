// Package evaluator resolves a toggle against an evaluation context.
//
// Resolution is a pure function of the flag definition, the namespace kill
// switch, and the context. It never performs I/O and is safe for concurrent use.
package evaluator

import (
	"github.com/OrlandoBitencourt/pennant/internal/bucket"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Evaluator defines the interface for flag evaluation
type Evaluator interface {
	// Evaluate resolves the toggle id from snapshot for evalCtx
	Evaluate(snapshot *domain.Snapshot, enabled bool, id domain.ToggleID, evalCtx domain.Context) (domain.Decision, error)
}

// LocalEvaluator implements in-process rule resolution
type LocalEvaluator struct{}

// New creates a new local evaluator
func New() *LocalEvaluator {
	return &LocalEvaluator{}
}

// Evaluate looks the toggle up and resolves it. A toggle missing from the
// snapshot is the only error.
func (e *LocalEvaluator) Evaluate(snapshot *domain.Snapshot, enabled bool, id domain.ToggleID, evalCtx domain.Context) (domain.Decision, error) {
	def, ok := snapshot.Get(id)
	if !ok {
		return domain.Decision{}, domain.NewNotFoundError("toggle", id.String())
	}
	return Resolve(def, enabled, evalCtx), nil
}

// Resolve runs the resolution state machine for one definition:
// kill switch, then active flag, then rules by specificity, then default.
func Resolve(def *domain.FlagDefinition, enabled bool, evalCtx domain.Context) domain.Decision {
	id := def.ID()

	if !enabled {
		return domain.Decision{Toggle: id, Kind: domain.DecisionRegistryDisabled, Value: def.Default()}
	}

	if !def.Active() {
		return domain.Decision{Toggle: id, Kind: domain.DecisionInactive, Value: def.Default()}
	}

	decision := domain.Decision{Toggle: id, Kind: domain.DecisionDefault, Value: def.Default()}
	stableID := evalCtx.StableID().String()

	def.EachRanked(func(r domain.RankedRule) bool {
		if !r.Rule.Targeting().Matches(evalCtx) {
			return true
		}

		salt := def.Salt()
		if override, ok := r.Rule.Salt(); ok {
			salt = override
		}

		b := bucket.Bucket(salt, id.Key, stableID)
		if b >= bucket.BasisPoints(r.Rule.Rollout()) {
			return true
		}

		decision = domain.Decision{
			Toggle: id,
			Kind:   domain.DecisionRule,
			Value:  r.Rule.Value(),
			Rule: &domain.RuleMatch{
				Index:       r.Index,
				Specificity: r.Specificity,
				Bucket:      b,
				Note:        r.Rule.Note(),
			},
		}
		return false
	})

	return decision
}
