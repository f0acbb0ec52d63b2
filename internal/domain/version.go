package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a semantic version compared lexicographically on
// (major, minor, patch).
type Version struct {
	Major int
	Minor int
	Patch int
}

// NewVersion builds a version from its components.
func NewVersion(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion parses "major[.minor[.patch]]". Missing components default to 0.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, NewValidationError("version cannot be empty")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, NewValidationError(fmt.Sprintf("version %q has more than three components", s))
	}

	var nums [3]int
	for i, p := range parts {
		if p == "" || p[0] < '0' || p[0] > '9' {
			return Version{}, NewValidationError(fmt.Sprintf("version %q has a non-numeric component", s))
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, NewValidationErrorWithCause(fmt.Sprintf("version %q has a non-numeric component", s), err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// RangeKind discriminates the VersionRange variants.
type RangeKind int

const (
	RangeUnbounded RangeKind = iota
	RangeMinBound
	RangeMaxBound
	RangeMinMaxBound
)

func (k RangeKind) String() string {
	switch k {
	case RangeUnbounded:
		return "unbounded"
	case RangeMinBound:
		return "min"
	case RangeMaxBound:
		return "max"
	case RangeMinMaxBound:
		return "min-max"
	default:
		return "unknown"
	}
}

// ParseRangeKind is the inverse of RangeKind.String.
func ParseRangeKind(s string) (RangeKind, bool) {
	switch s {
	case "unbounded":
		return RangeUnbounded, true
	case "min":
		return RangeMinBound, true
	case "max":
		return RangeMaxBound, true
	case "min-max":
		return RangeMinMaxBound, true
	default:
		return 0, false
	}
}

// VersionRange is an inclusive version interval. The zero value is unbounded.
type VersionRange struct {
	kind RangeKind
	min  Version
	max  Version
}

func Unbounded() VersionRange { return VersionRange{kind: RangeUnbounded} }

func AtLeast(min Version) VersionRange { return VersionRange{kind: RangeMinBound, min: min} }

func AtMost(max Version) VersionRange { return VersionRange{kind: RangeMaxBound, max: max} }

// Between returns the fully bounded range [min, max].
func Between(min, max Version) (VersionRange, error) {
	if min.Compare(max) > 0 {
		return VersionRange{}, NewValidationError(fmt.Sprintf("version range min %s is above max %s", min, max))
	}
	return VersionRange{kind: RangeMinMaxBound, min: min, max: max}, nil
}

func (r VersionRange) Kind() RangeKind { return r.kind }

// Min returns the lower bound, if any.
func (r VersionRange) Min() (Version, bool) {
	if r.kind == RangeMinBound || r.kind == RangeMinMaxBound {
		return r.min, true
	}
	return Version{}, false
}

// Max returns the upper bound, if any.
func (r VersionRange) Max() (Version, bool) {
	if r.kind == RangeMaxBound || r.kind == RangeMinMaxBound {
		return r.max, true
	}
	return Version{}, false
}

// Contains reports whether v lies in the range (bounds inclusive).
func (r VersionRange) Contains(v Version) bool {
	switch r.kind {
	case RangeUnbounded:
		return true
	case RangeMinBound:
		return v.Compare(r.min) >= 0
	case RangeMaxBound:
		return v.Compare(r.max) <= 0
	case RangeMinMaxBound:
		return v.Compare(r.min) >= 0 && v.Compare(r.max) <= 0
	default:
		return false
	}
}

// Specificity scores 1/2/2/3 for unbounded/min/max/min-max.
func (r VersionRange) Specificity() int {
	switch r.kind {
	case RangeUnbounded:
		return 1
	case RangeMinBound, RangeMaxBound:
		return 2
	case RangeMinMaxBound:
		return 3
	default:
		return 0
	}
}

func (r VersionRange) String() string {
	switch r.kind {
	case RangeMinBound:
		return ">=" + r.min.String()
	case RangeMaxBound:
		return "<=" + r.max.String()
	case RangeMinMaxBound:
		return "[" + r.min.String() + ", " + r.max.String() + "]"
	default:
		return "*"
	}
}
