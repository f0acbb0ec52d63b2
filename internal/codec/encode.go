package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Encode renders s in the external format. Output is deterministic: flags are
// sorted by key, sets are sorted and maps use encoding/json key order, so
// Encode(Decode(Encode(s))) is byte-identical to Encode(s).
func (c *Codec) Encode(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, newBoundaryError(Unencodable, "", "snapshot is nil", nil)
	}
	if s.Namespace() != c.namespace {
		return nil, newBoundaryError(NamespaceMismatch, "namespace",
			fmt.Sprintf("snapshot is for namespace %q, expected %q", s.Namespace(), c.namespace), domain.ErrNamespaceMismatch)
	}

	p := payload{
		SchemaVersion: SchemaVersion,
		Namespace:     s.Namespace(),
		Version:       s.Version(),
		Flags:         make([]flagPayload, 0, s.Len()),
	}
	for i, def := range s.Definitions() {
		fp, err := c.encodeFlag(def, fmt.Sprintf("flags[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Flags = append(p.Flags, fp)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, newBoundaryError(Unencodable, "", "payload could not be marshalled", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) encodeFlag(def *domain.FlagDefinition, path string) (flagPayload, error) {
	vt := def.Type()
	fp := flagPayload{
		Key:  def.ID().Key,
		Type: vt.Kind().String(),
		Tag:  vt.Tag(),
	}
	if vt.Kind() == domain.KindEnum {
		fp.Enum = vt.Enum()
	}
	if def.Salt() != domain.DefaultSalt {
		fp.Salt = def.Salt()
	}
	if !def.Active() {
		inactive := false
		fp.Active = &inactive
	}

	raw, err := c.values.encodeValue(vt, def.Default(), path+".default")
	if err != nil {
		return flagPayload{}, err
	}
	fp.Default = raw

	for j, r := range def.Rules() {
		rp, err := c.encodeRule(vt, r, fmt.Sprintf("%s.rules[%d]", path, j))
		if err != nil {
			return flagPayload{}, err
		}
		fp.Rules = append(fp.Rules, rp)
	}
	return fp, nil
}

func (c *Codec) encodeRule(vt domain.ValueType, r domain.Rule, path string) (rulePayload, error) {
	raw, err := c.values.encodeValue(vt, r.Value(), path+".value")
	if err != nil {
		return rulePayload{}, err
	}

	t := r.Targeting()
	rp := rulePayload{
		Value:     raw,
		Note:      r.Note(),
		Locales:   t.Locales(),
		Platforms: t.Platforms(),
	}
	if rollout := r.Rollout(); rollout != 100 {
		rp.Rollout = &rollout
	}
	if salt, ok := r.Salt(); ok {
		rp.Salt = salt
	}
	if axes := t.Axes(); len(axes) > 0 {
		rp.Axes = axes
	}

	vr := t.VersionRange()
	if vr.Kind() != domain.RangeUnbounded {
		vp := &versionPayload{Kind: vr.Kind().String()}
		if lo, ok := vr.Min(); ok {
			vp.Min = lo.String()
		}
		if hi, ok := vr.Max(); ok {
			vp.Max = hi.String()
		}
		rp.Version = vp
	}

	if pred := t.Custom(); pred != nil {
		ep, ok := pred.(domain.ExpressionPredicate)
		if !ok {
			return rulePayload{}, newBoundaryError(Unencodable, path+".custom",
				fmt.Sprintf("predicate %T has no expression form", pred), nil)
		}
		rp.Custom = &customPayload{Expr: ep.Expression(), Weight: ep.Weight()}
	}
	return rp, nil
}
