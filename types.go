package pennant

import (
	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
)

// Core types re-exported from the internal packages.
type (
	Context        = domain.Context
	StableID       = domain.StableID
	Version        = domain.Version
	ToggleID       = domain.ToggleID
	Decision       = domain.Decision
	DecisionKind   = domain.DecisionKind
	RuleMatch      = domain.RuleMatch
	Snapshot       = domain.Snapshot
	Patch          = domain.Patch
	FlagDefinition = domain.FlagDefinition
	Rule           = domain.Rule
	Targeting      = domain.Targeting
	Predicate      = domain.Predicate
	ValueType      = domain.ValueType
	Kind           = domain.Kind
	VersionRange   = domain.VersionRange

	Declaration      = codec.Declaration
	ValueCodec       = codec.ValueCodec
	CodecFuncs       = codec.CodecFuncs
	UnknownKeyPolicy = codec.UnknownKeyPolicy

	HistoryEntry = registry.HistoryEntry
	FlagAnalysis = evaluator.FlagAnalysis
)

const (
	DecisionRegistryDisabled = domain.DecisionRegistryDisabled
	DecisionInactive         = domain.DecisionInactive
	DecisionRule             = domain.DecisionRule
	DecisionDefault          = domain.DecisionDefault
)

const (
	RejectUnknown = codec.RejectUnknown
	IgnoreUnknown = codec.IgnoreUnknown
	WarnUnknown   = codec.WarnUnknown
)

// Builders for contexts, definitions and snapshots.
var (
	NewContext     = domain.NewContext
	NewStableID    = domain.NewStableID
	HashedStableID = domain.HashedStableID
	NewVersion     = domain.NewVersion
	ParseVersion   = domain.ParseVersion
	NewToggleID    = domain.NewToggleID

	NewFlagDefinition = domain.NewFlagDefinition
	NewRule           = domain.NewRule
	NewTargeting      = domain.NewTargeting
	NewSnapshot       = domain.NewSnapshot

	Locales   = domain.Locales
	Platforms = domain.Platforms
	Versions  = domain.Versions
	AxisIn    = domain.AxisIn
	Custom    = domain.Custom

	Unbounded = domain.Unbounded
	AtLeast   = domain.AtLeast
	AtMost    = domain.AtMost
	Between   = domain.Between

	WithRollout  = domain.WithRollout
	WithRuleSalt = domain.WithRuleSalt
	WithNote     = domain.WithNote
	WithRules    = domain.WithRules
	WithSalt     = domain.WithSalt
	WithActive   = domain.WithActive

	BoolType   = domain.BoolType
	StringType = domain.StringType
	IntType    = domain.IntType
	FloatType  = domain.FloatType
	EnumType   = domain.EnumType
	CustomType = domain.CustomType

	Declare = codec.Declare
)

// JSONCodec returns a ValueCodec for T round-tripped through encoding/json.
func JSONCodec[T any]() ValueCodec {
	return codec.JSONCodec[T]()
}
