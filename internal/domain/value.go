package domain

import (
	"fmt"
	"math"
	"slices"
)

// Kind is the closed set of toggle value kinds.
type Kind int

const (
	KindBool Kind = iota
	KindString
	KindInt
	KindFloat
	KindEnum
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "boolean":
		return KindBool, true
	case "string":
		return KindString, true
	case "integer":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "enum":
		return KindEnum, true
	case "custom":
		return KindCustom, true
	default:
		return 0, false
	}
}

// ValueType describes the runtime type every value of a toggle must have.
//
// Runtime representations:
//
//	KindBool   bool
//	KindString string
//	KindInt    int64
//	KindFloat  float64
//	KindEnum   string, member of Enum()
//	KindCustom any non-nil value understood by the codec registered for Tag()
type ValueType struct {
	kind Kind
	tag  string
	enum []string
}

func BoolType() ValueType   { return ValueType{kind: KindBool} }
func StringType() ValueType { return ValueType{kind: KindString} }
func IntType() ValueType    { return ValueType{kind: KindInt} }
func FloatType() ValueType  { return ValueType{kind: KindFloat} }

// EnumType declares a closed enumeration. Members are kept in declaration order.
func EnumType(members ...string) (ValueType, error) {
	if len(members) == 0 {
		return ValueType{}, NewValidationError("enum type needs at least one member")
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m == "" {
			return ValueType{}, NewValidationError("enum member cannot be empty")
		}
		if _, dup := seen[m]; dup {
			return ValueType{}, NewValidationError(fmt.Sprintf("duplicate enum member %q", m))
		}
		seen[m] = struct{}{}
	}
	return ValueType{kind: KindEnum, enum: slices.Clone(members)}, nil
}

// CustomType declares a value type handled by an externally registered codec.
func CustomType(tag string) (ValueType, error) {
	if tag == "" {
		return ValueType{}, NewValidationError("custom type needs a tag")
	}
	return ValueType{kind: KindCustom, tag: tag}, nil
}

func (t ValueType) Kind() Kind     { return t.kind }
func (t ValueType) Tag() string    { return t.tag }
func (t ValueType) Enum() []string { return slices.Clone(t.enum) }

// Equal reports structural equality.
func (t ValueType) Equal(other ValueType) bool {
	return t.kind == other.kind && t.tag == other.tag && slices.Equal(t.enum, other.enum)
}

func (t ValueType) String() string {
	switch t.kind {
	case KindCustom:
		return "custom(" + t.tag + ")"
	case KindEnum:
		return fmt.Sprintf("enum%v", t.enum)
	default:
		return t.kind.String()
	}
}

// Check verifies that v has the runtime representation required by t.
func (t ValueType) Check(v any) error {
	switch t.kind {
	case KindBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	case KindString:
		if _, ok := v.(string); ok {
			return nil
		}
	case KindInt:
		if _, ok := v.(int64); ok {
			return nil
		}
	case KindFloat:
		if f, ok := v.(float64); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return NewValidationError(fmt.Sprintf("float value %v is not finite", f))
			}
			return nil
		}
	case KindEnum:
		s, ok := v.(string)
		if ok && slices.Contains(t.enum, s) {
			return nil
		}
		if ok {
			return NewValidationError(fmt.Sprintf("%q is not a member of %s", s, t))
		}
	case KindCustom:
		if v != nil {
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("value %v (%T) does not match type %s", v, v, t))
}
