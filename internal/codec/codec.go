// Package codec converts between the external JSON payload format and
// domain snapshots.
//
// Decoding is all-or-nothing: a payload either becomes a complete,
// internally consistent snapshot (or patch) or the call returns a
// *BoundaryError and nothing is produced.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/predicate"
)

// Declaration pins a toggle key to a value type.
type Declaration struct {
	Key  string
	Type domain.ValueType
}

// Declare is shorthand for a Declaration literal.
func Declare(key string, t domain.ValueType) Declaration {
	return Declaration{Key: key, Type: t}
}

// Codec decodes and encodes payloads for a single namespace.
type Codec struct {
	namespace string
	values    *ValueCodecs
	compiler  *predicate.Compiler
	declared  map[string]domain.ValueType
	policy    UnknownKeyPolicy
	logger    *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithValueCodecs sets the registry used for custom value types.
func WithValueCodecs(r *ValueCodecs) Option {
	return func(c *Codec) { c.values = r }
}

// WithCompiler sets the predicate compiler. Without one every expression is
// compiled on each decode.
func WithCompiler(comp *predicate.Compiler) Option {
	return func(c *Codec) { c.compiler = comp }
}

// WithDeclarations restricts accepted keys to decls and pins their types.
// Keys outside the set are handled by the unknown key policy.
func WithDeclarations(decls ...Declaration) Option {
	return func(c *Codec) {
		if c.declared == nil {
			c.declared = make(map[string]domain.ValueType, len(decls))
		}
		for _, d := range decls {
			c.declared[d.Key] = d.Type
		}
	}
}

// WithUnknownKeyPolicy sets the policy for undeclared keys. Default RejectUnknown.
func WithUnknownKeyPolicy(p UnknownKeyPolicy) Option {
	return func(c *Codec) { c.policy = p }
}

// WithLogger sets the logger used for WarnUnknown.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) { c.logger = logger }
}

// New creates a codec bound to namespace.
func New(namespace string, opts ...Option) *Codec {
	c := &Codec{
		namespace: namespace,
		policy:    RejectUnknown,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.values == nil {
		c.values = NewValueCodecs()
	}
	return c
}

func (c *Codec) Namespace() string { return c.namespace }

// Declared returns the declared type for key, if declarations are in use.
func (c *Codec) Declared(key string) (domain.ValueType, bool) {
	t, ok := c.declared[key]
	return t, ok
}

// CheckDeclared applies the declarations to definitions built in code. A
// declared key must carry its declared type; an undeclared key is rejected
// only under RejectUnknown.
func (c *Codec) CheckDeclared(defs []*domain.FlagDefinition) error {
	if c.declared == nil {
		return nil
	}
	for _, def := range defs {
		key := def.ID().Key
		declared, ok := c.declared[key]
		if !ok {
			if c.policy == RejectUnknown {
				return newBoundaryError(UnknownToggle, key, fmt.Sprintf("key %q is not declared", key), nil)
			}
			continue
		}
		if !declared.Equal(def.Type()) {
			return newBoundaryError(InvalidValue, key,
				fmt.Sprintf("key %q is declared as %s, definition says %s", key, declared, def.Type()), nil)
		}
	}
	return nil
}

// Decode parses a full payload into a snapshot.
func (c *Codec) Decode(data []byte) (*domain.Snapshot, error) {
	p, err := c.decodePayload(data)
	if err != nil {
		return nil, err
	}
	if len(p.RemoveKeys) > 0 {
		return nil, newBoundaryError(Malformed, "removeKeys", "removeKeys is only allowed in patches", nil)
	}

	defs, err := c.buildFlags(p.Flags)
	if err != nil {
		return nil, err
	}

	snapshot, err := domain.NewSnapshot(c.namespace, p.Version, defs...)
	if err != nil {
		return nil, newBoundaryError(Malformed, "flags", "snapshot could not be built", err)
	}
	return snapshot, nil
}

// DecodePatch parses a patch payload. Flags are upserts and removeKeys are
// removals; a key may not appear in both.
func (c *Codec) DecodePatch(data []byte) (domain.Patch, error) {
	p, err := c.decodePayload(data)
	if err != nil {
		return domain.Patch{}, err
	}

	defs, err := c.buildFlags(p.Flags)
	if err != nil {
		return domain.Patch{}, err
	}

	upserted := make(map[string]struct{}, len(p.Flags))
	for _, f := range p.Flags {
		upserted[f.Key] = struct{}{}
	}

	removals := make([]domain.ToggleID, 0, len(p.RemoveKeys))
	seen := make(map[string]struct{}, len(p.RemoveKeys))
	for i, key := range p.RemoveKeys {
		path := fmt.Sprintf("removeKeys[%d]", i)
		if _, dup := seen[key]; dup {
			return domain.Patch{}, newBoundaryError(DuplicateToggle, path, fmt.Sprintf("key %q removed twice", key), nil)
		}
		if _, both := upserted[key]; both {
			return domain.Patch{}, newBoundaryError(Malformed, path, fmt.Sprintf("key %q is both upserted and removed", key), nil)
		}
		seen[key] = struct{}{}
		removals = append(removals, domain.NewToggleID(c.namespace, key))
	}

	return domain.Patch{Version: p.Version, Upserts: defs, Removals: removals}, nil
}

// decodePayload runs the syntax, version, shape and namespace checks.
func (c *Codec) decodePayload(data []byte) (*payload, error) {
	if !json.Valid(data) {
		return nil, newBoundaryError(Malformed, "", "payload is not valid JSON", nil)
	}

	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, newBoundaryError(Malformed, "", "payload must be a JSON object", err)
	}
	rawVersion, ok := head["schemaVersion"]
	if !ok {
		return nil, newBoundaryError(Malformed, "schemaVersion", "schemaVersion is required", nil)
	}
	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return nil, newBoundaryError(Malformed, "schemaVersion", "schemaVersion must be an integer", err)
	}
	if version != SchemaVersion {
		return nil, newBoundaryError(UnsupportedVersion, "schemaVersion",
			fmt.Sprintf("schema version %d is not supported (want %d)", version, SchemaVersion), nil)
	}

	if err := validateShape(data); err != nil {
		return nil, err
	}

	var p payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, newBoundaryError(Malformed, "", "payload does not match the expected shape", err)
	}

	if p.Namespace != c.namespace {
		return nil, newBoundaryError(NamespaceMismatch, "namespace",
			fmt.Sprintf("payload is for namespace %q, expected %q", p.Namespace, c.namespace), domain.ErrNamespaceMismatch)
	}
	return &p, nil
}

func (c *Codec) buildFlags(flags []flagPayload) ([]*domain.FlagDefinition, error) {
	defs := make([]*domain.FlagDefinition, 0, len(flags))
	seen := make(map[string]struct{}, len(flags))

	for i, fp := range flags {
		path := fmt.Sprintf("flags[%d]", i)
		if _, dup := seen[fp.Key]; dup {
			return nil, newBoundaryError(DuplicateToggle, path+".key", fmt.Sprintf("key %q appears more than once", fp.Key), nil)
		}
		seen[fp.Key] = struct{}{}

		if c.declared != nil {
			if _, known := c.declared[fp.Key]; !known {
				switch c.policy {
				case IgnoreUnknown:
					continue
				case WarnUnknown:
					c.logger.Warn("ignoring undeclared toggle",
						"namespace", c.namespace,
						"key", fp.Key)
					continue
				default:
					return nil, newBoundaryError(UnknownToggle, path+".key", fmt.Sprintf("key %q is not declared", fp.Key), nil)
				}
			}
		}

		def, err := c.buildFlag(fp, path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (c *Codec) buildFlag(fp flagPayload, path string) (*domain.FlagDefinition, error) {
	vt, err := c.valueType(fp, path)
	if err != nil {
		return nil, err
	}
	if declared, ok := c.declared[fp.Key]; ok && !declared.Equal(vt) {
		return nil, newBoundaryError(InvalidValue, path+".type",
			fmt.Sprintf("key %q is declared as %s, payload says %s", fp.Key, declared, vt), nil)
	}

	def, err := c.values.decodeValue(vt, fp.Default, path+".default")
	if err != nil {
		return nil, err
	}

	rules := make([]domain.Rule, 0, len(fp.Rules))
	for j, rp := range fp.Rules {
		r, err := c.buildRule(vt, rp, fmt.Sprintf("%s.rules[%d]", path, j))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	opts := []domain.FlagOption{domain.WithRules(rules...), domain.WithSalt(fp.Salt)}
	if fp.Active != nil {
		opts = append(opts, domain.WithActive(*fp.Active))
	}

	flag, err := domain.NewFlagDefinition(domain.NewToggleID(c.namespace, fp.Key), vt, def, opts...)
	if err != nil {
		return nil, newBoundaryError(InvalidValue, path, "flag definition is invalid", err)
	}
	return flag, nil
}

func (c *Codec) valueType(fp flagPayload, path string) (domain.ValueType, error) {
	kind, ok := domain.ParseKind(fp.Type)
	if !ok {
		return domain.ValueType{}, newBoundaryError(UnknownValueType, path+".type", fmt.Sprintf("unknown value type %q", fp.Type), nil)
	}
	if fp.Tag != "" && kind != domain.KindCustom {
		return domain.ValueType{}, newBoundaryError(Malformed, path+".tag", "tag is only allowed for custom types", nil)
	}
	if fp.Enum != nil && kind != domain.KindEnum {
		return domain.ValueType{}, newBoundaryError(Malformed, path+".enum", "enum is only allowed for enum types", nil)
	}

	switch kind {
	case domain.KindBool:
		return domain.BoolType(), nil
	case domain.KindString:
		return domain.StringType(), nil
	case domain.KindInt:
		return domain.IntType(), nil
	case domain.KindFloat:
		return domain.FloatType(), nil
	case domain.KindEnum:
		vt, err := domain.EnumType(fp.Enum...)
		if err != nil {
			return domain.ValueType{}, newBoundaryError(UnknownValueType, path+".enum", "enum members are invalid", err)
		}
		return vt, nil
	default:
		vt, err := domain.CustomType(fp.Tag)
		if err != nil {
			return domain.ValueType{}, newBoundaryError(UnknownValueType, path+".tag", "custom type needs a tag", err)
		}
		if _, ok := c.values.Lookup(fp.Tag); !ok {
			return domain.ValueType{}, newBoundaryError(UnregisteredCodec, path+".tag", fmt.Sprintf("no codec registered for %q", fp.Tag), nil)
		}
		return vt, nil
	}
}

func (c *Codec) buildRule(vt domain.ValueType, rp rulePayload, path string) (domain.Rule, error) {
	value, err := c.values.decodeValue(vt, rp.Value, path+".value")
	if err != nil {
		return domain.Rule{}, err
	}

	topts := []domain.TargetingOption{
		domain.Locales(rp.Locales...),
		domain.Platforms(rp.Platforms...),
	}
	if rp.Version != nil {
		r, err := versionRange(*rp.Version)
		if err != nil {
			return domain.Rule{}, newBoundaryError(InvalidRule, path+".version", "version range is invalid", err)
		}
		topts = append(topts, domain.Versions(r))
	}
	for _, name := range slices.Sorted(maps.Keys(rp.Axes)) {
		if name == "" {
			return domain.Rule{}, newBoundaryError(InvalidRule, path+".axes", "axis name cannot be empty", nil)
		}
		topts = append(topts, domain.AxisIn(name, rp.Axes[name]...))
	}
	if rp.Custom != nil {
		pred, err := c.compile(rp.Custom.Expr, rp.Custom.Weight)
		if err != nil {
			return domain.Rule{}, newBoundaryError(InvalidRule, path+".custom", "custom predicate is invalid", err)
		}
		topts = append(topts, domain.Custom(pred))
	}

	ropts := []domain.RuleOption{domain.WithRuleSalt(rp.Salt), domain.WithNote(rp.Note)}
	if rp.Rollout != nil {
		ropts = append(ropts, domain.WithRollout(*rp.Rollout))
	}

	r, err := domain.NewRule(value, domain.NewTargeting(topts...), ropts...)
	if err != nil {
		return domain.Rule{}, newBoundaryError(InvalidRule, path, "rule is invalid", err)
	}
	return r, nil
}

func (c *Codec) compile(source string, weight int) (*predicate.Expr, error) {
	if c.compiler != nil {
		return c.compiler.Compile(source, weight)
	}
	return predicate.New(source, weight)
}

func versionRange(vp versionPayload) (domain.VersionRange, error) {
	kind, ok := domain.ParseRangeKind(vp.Kind)
	if !ok {
		return domain.VersionRange{}, fmt.Errorf("unknown range kind %q", vp.Kind)
	}

	wantMin := kind == domain.RangeMinBound || kind == domain.RangeMinMaxBound
	wantMax := kind == domain.RangeMaxBound || kind == domain.RangeMinMaxBound
	if wantMin != (vp.Min != "") {
		return domain.VersionRange{}, fmt.Errorf("range kind %s: min bound presence is wrong", kind)
	}
	if wantMax != (vp.Max != "") {
		return domain.VersionRange{}, fmt.Errorf("range kind %s: max bound presence is wrong", kind)
	}

	var lo, hi domain.Version
	var err error
	if wantMin {
		if lo, err = domain.ParseVersion(vp.Min); err != nil {
			return domain.VersionRange{}, err
		}
	}
	if wantMax {
		if hi, err = domain.ParseVersion(vp.Max); err != nil {
			return domain.VersionRange{}, err
		}
	}

	switch kind {
	case domain.RangeMinBound:
		return domain.AtLeast(lo), nil
	case domain.RangeMaxBound:
		return domain.AtMost(hi), nil
	case domain.RangeMinMaxBound:
		return domain.Between(lo, hi)
	default:
		return domain.Unbounded(), nil
	}
}
