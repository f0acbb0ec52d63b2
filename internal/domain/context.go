package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// StableID is an opaque, content-addressable identifier used for bucketing.
type StableID string

// NewStableID hex-encodes raw so the same input always yields the same id.
func NewStableID(raw string) StableID {
	return StableID(hex.EncodeToString([]byte(raw)))
}

// HashedStableID returns the hex SHA-256 of raw, for callers that do not want
// the raw identifier to appear anywhere downstream.
func HashedStableID(raw string) StableID {
	sum := sha256.Sum256([]byte(raw))
	return StableID(hex.EncodeToString(sum[:]))
}

func (s StableID) String() string { return string(s) }

// Context holds the inputs to a single evaluation. It is immutable: the With*
// methods return modified copies and never alias the receiver's axis sets.
type Context struct {
	stableID StableID
	locale   string
	platform string
	version  Version
	axes     map[string][]string
}

// NewContext creates an evaluation context for the given stable id.
func NewContext(id StableID) Context {
	return Context{stableID: id}
}

// WithLocale sets the locale tag.
func (c Context) WithLocale(locale string) Context {
	c.locale = locale
	return c
}

// WithPlatform sets the platform tag.
func (c Context) WithPlatform(platform string) Context {
	c.platform = platform
	return c
}

// WithVersion sets the application version.
func (c Context) WithVersion(v Version) Context {
	c.version = v
	return c
}

// WithStableID replaces the stable id.
func (c Context) WithStableID(id StableID) Context {
	c.stableID = id
	return c
}

// WithAxis sets the value set of a named axis, replacing any previous set.
func (c Context) WithAxis(name string, values ...string) Context {
	axes := make(map[string][]string, len(c.axes)+1)
	for k, v := range c.axes {
		axes[k] = v
	}
	axes[name] = normalizeSet(values)
	c.axes = axes
	return c
}

func (c Context) StableID() StableID { return c.stableID }
func (c Context) Locale() string     { return c.locale }
func (c Context) Platform() string   { return c.platform }
func (c Context) Version() Version   { return c.version }

// Axis returns a copy of the value set for name.
func (c Context) Axis(name string) ([]string, bool) {
	v, ok := c.axes[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// AxisNames returns the sorted names of every axis set on the context.
func (c Context) AxisNames() []string {
	names := make([]string, 0, len(c.axes))
	for k := range c.axes {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// axisIntersects reports whether the axis exists and shares a member with
// want, which must be sorted.
func (c Context) axisIntersects(name string, want []string) bool {
	have, ok := c.axes[name]
	if !ok {
		return false
	}
	for _, v := range have {
		if _, found := slices.BinarySearch(want, v); found {
			return true
		}
	}
	return false
}

// normalizeSet returns a sorted copy of values without duplicates or empties.
func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
