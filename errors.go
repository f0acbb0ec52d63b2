package pennant

import (
	"errors"
	"fmt"

	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
)

// Error types that may be returned by Engine operations.

// NotFoundError indicates a toggle or namespace that does not exist.
type NotFoundError = domain.NotFoundError

// BoundaryError is returned when a payload cannot become a snapshot. The
// previously installed snapshot keeps serving.
type BoundaryError = codec.BoundaryError

// BoundaryKind classifies a BoundaryError.
type BoundaryKind = codec.BoundaryKind

const (
	Malformed          = codec.Malformed
	UnsupportedVersion = codec.UnsupportedVersion
	UnknownValueType   = codec.UnknownValueType
	UnregisteredCodec  = codec.UnregisteredCodec
	UnknownToggle      = codec.UnknownToggle
	DuplicateToggle    = codec.DuplicateToggle
	NamespaceMismatch  = codec.NamespaceMismatch
	InvalidValue       = codec.InvalidValue
	InvalidRule        = codec.InvalidRule
	Unencodable        = codec.Unencodable
)

var (
	// ErrRollbackUnavailable is returned by Rollback when the history is too short.
	ErrRollbackUnavailable = registry.ErrRollbackUnavailable

	// ErrNamespaceMismatch is returned when a snapshot or definition targets
	// a different namespace.
	ErrNamespaceMismatch = domain.ErrNamespaceMismatch
)

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

// TypeMismatchError is the panic value of Value when the caller's type does
// not match the toggle's value type.
type TypeMismatchError struct {
	Toggle   ToggleID
	Declared ValueType
	Wanted   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("toggle %s has type %s, requested as %s", e.Toggle, e.Declared, e.Wanted)
}

func IsNotFound(err error) bool { return domain.IsNotFound(err) }

func IsBoundaryError(err error) bool { return codec.IsBoundaryError(err) }

// AsBoundaryError extracts the *BoundaryError from err's chain.
func AsBoundaryError(err error) (*BoundaryError, bool) { return codec.AsBoundaryError(err) }

func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
