// Package idgen generates element identifiers (spec §4.3): a short,
// content-derived hex suffix appended to a two-letter type prefix, plus the
// adaptive suffix-length cache that keeps IDs short while the element count
// is small and lengthens them automatically as collision risk grows.
// Grounded on the teacher's internal/idgen/hash.go (same
// sha256-content-plus-nonce approach), adapted from base36 to lowercase hex
// per spec §4.3's identifier format.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PrefixElement and PrefixEntity are the two element-ID prefixes spec §4.3
// defines ("el" for most element types, "en" for Entity).
const (
	PrefixElement = "el"
	PrefixEntity  = "en"
)

// MinSuffixLength and MaxSuffixLength are the hard bounds on the adaptive
// suffix length (spec §4.3).
const (
	MinSuffixLength = 3
	MaxSuffixLength = 8
)

// GenerateHashID derives an ID of the form "<prefix>-<suffix>" from the
// element's content, a timestamp, and a collision-retry nonce. suffixLength
// is normally supplied by the Cache (spec §4.3) and clamped here to
// [MinSuffixLength, MaxSuffixLength].
func GenerateHashID(prefix, title, description, creator string, timestamp time.Time, suffixLength, nonce int) string {
	if suffixLength < MinSuffixLength {
		suffixLength = MinSuffixLength
	}
	if suffixLength > MaxSuffixLength {
		suffixLength = MaxSuffixLength
	}

	content := fmt.Sprintf("%s|%s|%s|%d|%d", title, description, creator, timestamp.UnixNano(), nonce)
	sum := sha256.Sum256([]byte(content))
	hexStr := hex.EncodeToString(sum[:])

	return fmt.Sprintf("%s-%s", prefix, hexStr[:suffixLength])
}

// PrefixFor returns the ID prefix for an element type (spec §4.3: "en" for
// entity, "el" for every other element type).
func PrefixFor(elementType string) string {
	if elementType == "entity" {
		return PrefixEntity
	}
	return PrefixElement
}
