// Package merge reconciles two person records into one using a declarative
// per-field policy table. Every policy is idempotent: re-applying a merge
// against an already-merged record yields the identical document.
package merge

import (
	"strings"
	"time"
)

// Policy names how a single field is reconciled during a merge
type Policy string

const (
	// PreferExisting keeps the surviving record's value unconditionally
	PreferExisting Policy = "prefer_existing"
	// PreferNonEmpty adopts the incoming value only where the existing one
	// is empty or the "Unknown" sentinel
	PreferNonEmpty Policy = "prefer_non_empty"
	// PreferLessEstimated lets a non-estimated date beat an estimated one,
	// even overriding an existing estimated value
	PreferLessEstimated Policy = "prefer_less_estimated"
	// Concatenate newline-joins both values when both are non-empty
	Concatenate Policy = "concatenate"
	// UnionByKey unions array entries by a stable per-entry key, keeping
	// the first-seen entry's other fields
	UnionByKey Policy = "union_by_key"
)

// UnknownSentinel is the legacy placeholder treated as an empty value
const UnknownSentinel = "Unknown"

// fieldPolicies documents which policy applies to each person field.
// The merge in person.go follows this table.
var fieldPolicies = map[string]Policy{
	"first_name":        PreferNonEmpty,
	"middle_name":       PreferNonEmpty,
	"last_name":         PreferNonEmpty,
	"maiden_name":       PreferNonEmpty,
	"nickname":          PreferNonEmpty,
	"gender":            PreferNonEmpty,
	"birth_date":        PreferLessEstimated,
	"birth_place":       PreferNonEmpty,
	"death_date":        PreferLessEstimated,
	"death_place":       PreferNonEmpty,
	"notes":             Concatenate,
	"titles":            UnionByKey,
	"identifiers":       UnionByKey,
	"legal_parents":     UnionByKey,
	"spouses":           UnionByKey,
	"siblings":          UnionByKey,
	"biological_mother": PreferNonEmpty,
	"biological_father": PreferNonEmpty,
	"privacy":           PreferExisting,
	"family_tree_id":    PreferExisting,
}

// PolicyFor returns the policy governing a person field,
// PreferExisting for unlisted fields
func PolicyFor(field string) Policy {
	if p, ok := fieldPolicies[field]; ok {
		return p
	}
	return PreferExisting
}

// Scalar applies PreferNonEmpty to a string field
func Scalar(existing, incoming string) string {
	if isEmpty(existing) && !isEmpty(incoming) {
		return incoming
	}
	return existing
}

// Date applies PreferLessEstimated to a date plus its estimated flag
func Date(existing *time.Time, existingEstimated bool, incoming *time.Time, incomingEstimated bool) (*time.Time, bool) {
	if incoming == nil {
		return existing, existingEstimated
	}
	if existing == nil {
		return incoming, incomingEstimated
	}
	if existingEstimated && !incomingEstimated {
		return incoming, false
	}
	return existing, existingEstimated
}

// Notes applies Concatenate: newline-joined when both non-empty, and never
// duplicates text already present (idempotence under re-merge)
func Notes(existing, incoming string) string {
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return incoming
	}
	if existing == incoming || strings.Contains(existing, incoming) {
		return existing
	}
	return existing + "\n" + incoming
}

// Union applies UnionByKey: existing entries first, then unseen incoming
// entries in order. First-seen entry's fields are retained.
func Union[T any](existing, incoming []T, key func(T) string) []T {
	seen := make(map[string]bool, len(existing))
	out := make([]T, 0, len(existing)+len(incoming))
	for _, e := range existing {
		k := key(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	for _, e := range incoming {
		k := key(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isEmpty(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == UnknownSentinel || strings.EqualFold(s, "unknown")
}
