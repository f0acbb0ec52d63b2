package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Snapshot is an immutable, complete configuration of one namespace.
type Snapshot struct {
	namespace string
	version   string
	flags     map[ToggleID]*FlagDefinition
}

// NewSnapshot builds a snapshot. Every definition must belong to namespace
// and appear at most once.
func NewSnapshot(namespace, version string, defs ...*FlagDefinition) (*Snapshot, error) {
	if namespace == "" {
		return nil, NewValidationError("snapshot namespace cannot be empty")
	}

	flags := make(map[ToggleID]*FlagDefinition, len(defs))
	for _, def := range defs {
		if def == nil {
			return nil, NewValidationError("snapshot cannot contain a nil definition")
		}
		if def.ID().Namespace != namespace {
			return nil, NewValidationErrorWithCause(
				fmt.Sprintf("flag %s does not belong to namespace %s", def.ID(), namespace), ErrNamespaceMismatch)
		}
		if _, dup := flags[def.ID()]; dup {
			return nil, NewValidationError(fmt.Sprintf("duplicate flag %s", def.ID()))
		}
		flags[def.ID()] = def
	}

	return &Snapshot{namespace: namespace, version: version, flags: flags}, nil
}

// EmptySnapshot is the configuration a namespace starts with.
func EmptySnapshot(namespace string) *Snapshot {
	return &Snapshot{namespace: namespace, flags: map[ToggleID]*FlagDefinition{}}
}

func (s *Snapshot) Namespace() string { return s.namespace }
func (s *Snapshot) Version() string   { return s.version }
func (s *Snapshot) Len() int          { return len(s.flags) }

// Get looks up a definition.
func (s *Snapshot) Get(id ToggleID) (*FlagDefinition, bool) {
	def, ok := s.flags[id]
	return def, ok
}

// IDs returns every toggle identity sorted by key.
func (s *Snapshot) IDs() []ToggleID {
	ids := slices.Collect(maps.Keys(s.flags))
	slices.SortFunc(ids, func(a, b ToggleID) int {
		return strings.Compare(a.Key, b.Key)
	})
	return ids
}

// Definitions returns every definition sorted by key.
func (s *Snapshot) Definitions() []*FlagDefinition {
	ids := s.IDs()
	defs := make([]*FlagDefinition, len(ids))
	for i, id := range ids {
		defs[i] = s.flags[id]
	}
	return defs
}

// Equal reports value equality.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.namespace == other.namespace &&
		s.version == other.version &&
		maps.EqualFunc(s.flags, other.flags, (*FlagDefinition).Equal)
}

// Patch is an incremental change applied on top of a snapshot.
type Patch struct {
	// Version replaces the snapshot version tag when non-empty.
	Version  string
	Upserts  []*FlagDefinition
	Removals []ToggleID
}

// Apply returns a new snapshot with the patch overlaid. Upserts win over
// removals naming the same identity. The receiver is not modified.
func (s *Snapshot) Apply(p Patch) (*Snapshot, error) {
	flags := maps.Clone(s.flags)

	for _, id := range p.Removals {
		if id.Namespace != s.namespace {
			return nil, NewValidationErrorWithCause(
				fmt.Sprintf("cannot remove %s from namespace %s", id, s.namespace), ErrNamespaceMismatch)
		}
		delete(flags, id)
	}

	seen := make(map[ToggleID]struct{}, len(p.Upserts))
	for _, def := range p.Upserts {
		if def == nil {
			return nil, NewValidationError("patch cannot contain a nil definition")
		}
		if def.ID().Namespace != s.namespace {
			return nil, NewValidationErrorWithCause(
				fmt.Sprintf("flag %s does not belong to namespace %s", def.ID(), s.namespace), ErrNamespaceMismatch)
		}
		if _, dup := seen[def.ID()]; dup {
			return nil, NewValidationError(fmt.Sprintf("duplicate flag %s in patch", def.ID()))
		}
		seen[def.ID()] = struct{}{}
		flags[def.ID()] = def
	}

	version := s.version
	if p.Version != "" {
		version = p.Version
	}

	return &Snapshot{namespace: s.namespace, version: version, flags: flags}, nil
}
