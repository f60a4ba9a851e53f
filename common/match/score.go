// Package match scores person records for duplicate detection.
//
// The weights and threshold are fixed named constants. They trade recall
// for auditability: a reviewer can always explain a score by pointing at
// the three exact-match terms.
package match

import (
	"strings"

	"github.com/arborhq/lineage/common/models"
)

const (
	// WeightFirstName is the contribution of an exact first-name match
	WeightFirstName = 0.4
	// WeightLastName is the contribution of an exact last-name match
	WeightLastName = 0.4
	// WeightBirthDate is the contribution of an exact birth-date match
	WeightBirthDate = 0.2

	// SuggestionThreshold is the score a candidate pair must strictly
	// exceed before a merge suggestion is created
	SuggestionThreshold = 0.7
)

// Score returns the duplicate confidence for two persons in [0, 1].
// Deterministic: the same inputs always yield the same score.
func Score(a, b *models.Person) float64 {
	score := 0.0

	if namesEqual(a.FirstName, b.FirstName) {
		score += WeightFirstName
	}
	if namesEqual(a.LastName, b.LastName) {
		score += WeightLastName
	}
	if datesEqual(a, b) {
		score += WeightBirthDate
	}

	return score
}

// namesEqual compares trimmed names; empty names never match
func namesEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return a == b
}

// datesEqual compares calendar dates; a missing date never matches
func datesEqual(a, b *models.Person) bool {
	if a.BirthDate == nil || b.BirthDate == nil {
		return false
	}
	ay, am, ad := a.BirthDate.UTC().Date()
	by, bm, bd := b.BirthDate.UTC().Date()
	return ay == by && am == bm && ad == bd
}
