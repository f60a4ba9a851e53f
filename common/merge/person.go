package merge

import (
	"github.com/arborhq/lineage/common/models"
)

// Persons reconciles the incoming person into the existing one and returns
// the merged document. Neither input is mutated. The result keeps the
// existing person's identity (id, tree, created_at); IsLiving is recomputed.
//
// Idempotent: Persons(Persons(e, n), n) == Persons(e, n).
func Persons(existing, incoming *models.Person) *models.Person {
	merged := *existing

	// Scalars: existing wins unless empty or the "Unknown" sentinel
	merged.FirstName = Scalar(existing.FirstName, incoming.FirstName)
	merged.MiddleName = Scalar(existing.MiddleName, incoming.MiddleName)
	merged.LastName = Scalar(existing.LastName, incoming.LastName)
	merged.MaidenName = Scalar(existing.MaidenName, incoming.MaidenName)
	merged.Nickname = Scalar(existing.Nickname, incoming.Nickname)
	merged.BirthPlace = Scalar(existing.BirthPlace, incoming.BirthPlace)
	merged.DeathPlace = Scalar(existing.DeathPlace, incoming.DeathPlace)

	if existing.Gender == "" || existing.Gender == models.GenderUnknown {
		if incoming.Gender != "" && incoming.Gender != models.GenderUnknown {
			merged.Gender = incoming.Gender
		}
	}

	// Dates: a non-estimated date beats an estimated one
	merged.BirthDate, merged.BirthDateEstimated = Date(
		existing.BirthDate, existing.BirthDateEstimated,
		incoming.BirthDate, incoming.BirthDateEstimated,
	)
	merged.DeathDate, merged.DeathDateEstimated = Date(
		existing.DeathDate, existing.DeathDateEstimated,
		incoming.DeathDate, incoming.DeathDateEstimated,
	)

	// Arrays: union by stable per-entry key
	merged.Titles = Union(existing.Titles, incoming.Titles, func(t string) string { return t })
	merged.Identifiers = Union(existing.Identifiers, incoming.Identifiers, models.Identifier.Key)
	merged.LegalParents = Union(existing.LegalParents, incoming.LegalParents, models.LegalParent.Key)
	merged.Spouses = Union(existing.Spouses, incoming.Spouses, func(s models.SpouseLink) string {
		return s.RelationshipID.String()
	})
	merged.Siblings = Union(existing.Siblings, incoming.Siblings, func(s models.SiblingLink) string {
		return s.RelationshipID.String()
	})

	// Biological parents: fill only where the survivor has none
	if merged.BiologicalMother == nil && incoming.BiologicalMother != nil {
		ref := *incoming.BiologicalMother
		merged.BiologicalMother = &ref
	}
	if merged.BiologicalFather == nil && incoming.BiologicalFather != nil {
		ref := *incoming.BiologicalFather
		merged.BiologicalFather = &ref
	}

	merged.Notes = Notes(existing.Notes, incoming.Notes)

	merged.RecomputeLiving()
	return &merged
}
