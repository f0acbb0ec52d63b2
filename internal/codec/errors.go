package codec

import (
	"errors"
	"fmt"
)

// BoundaryKind classifies why a payload was rejected.
type BoundaryKind int

const (
	// Malformed covers syntax errors and shape violations.
	Malformed BoundaryKind = iota
	UnsupportedVersion
	UnknownValueType
	UnregisteredCodec
	UnknownToggle
	DuplicateToggle
	NamespaceMismatch
	InvalidValue
	InvalidRule
	// Unencodable is returned by Encode for values or predicates that have
	// no external form.
	Unencodable
)

func (k BoundaryKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnsupportedVersion:
		return "unsupported_version"
	case UnknownValueType:
		return "unknown_value_type"
	case UnregisteredCodec:
		return "unregistered_codec"
	case UnknownToggle:
		return "unknown_toggle"
	case DuplicateToggle:
		return "duplicate_toggle"
	case NamespaceMismatch:
		return "namespace_mismatch"
	case InvalidValue:
		return "invalid_value"
	case InvalidRule:
		return "invalid_rule"
	case Unencodable:
		return "unencodable"
	default:
		return fmt.Sprintf("boundary(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k BoundaryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// BoundaryError is returned for any payload that cannot become a snapshot.
type BoundaryError struct {
	Kind    BoundaryKind `json:"kind"`
	Path    string       `json:"path,omitempty"`
	Message string       `json:"message"`
	Cause   error        `json:"-"`
}

func newBoundaryError(kind BoundaryKind, path, message string, cause error) *BoundaryError {
	return &BoundaryError{Kind: kind, Path: path, Message: message, Cause: cause}
}

func (e *BoundaryError) Error() string {
	msg := fmt.Sprintf("boundary error [%s]", e.Kind)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BoundaryError) Unwrap() error {
	return e.Cause
}

// IsBoundaryError reports whether err is or wraps a *BoundaryError.
func IsBoundaryError(err error) bool {
	_, ok := AsBoundaryError(err)
	return ok
}

// AsBoundaryError extracts the *BoundaryError from err's chain.
func AsBoundaryError(err error) (*BoundaryError, bool) {
	var target *BoundaryError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
