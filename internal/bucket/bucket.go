// Package bucket implements deterministic percentage rollout bucketing.
//
// A stable id is mapped to a bucket in [0, 10000) by hashing
// salt + ":" + key + ":" + id with SHA-256. The bucket only depends on that
// triple, so raising a rollout percentage never drops an id that was already
// included, and changing one toggle's salt leaves every other toggle alone.
package bucket

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Buckets is the number of distinct buckets (basis points).
const Buckets = 10_000

// Bucket returns the bucket of stableID for the given salt and toggle key.
func Bucket(salt, key, stableID string) int {
	sum := sha256.Sum256([]byte(salt + ":" + key + ":" + stableID))
	return int(binary.BigEndian.Uint32(sum[:4]) % Buckets)
}

// BasisPoints converts a percentage (0-100, fractions allowed) to basis
// points, clamped to [0, 10000].
func BasisPoints(percent float64) int {
	if math.IsNaN(percent) || percent <= 0 {
		return 0
	}
	bp := int(math.Round(percent * 100))
	return min(bp, Buckets)
}

// Includes reports whether stableID falls inside the first basisPoints buckets.
func Includes(salt, key, stableID string, basisPoints int) bool {
	return Bucket(salt, key, stableID) < basisPoints
}

// IncludesPercent is Includes with the threshold given as a percentage.
func IncludesPercent(salt, key, stableID string, percent float64) bool {
	return Includes(salt, key, stableID, BasisPoints(percent))
}
