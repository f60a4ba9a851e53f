package models

import (
	"time"

	"github.com/google/uuid"
)

// Gender of a person. Unknown is a valid recorded value, not an error.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Identifier is an external identifier attached to a person (census entry,
// national id, archive reference)
type Identifier struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Key returns the stable dedupe key for union-by-key merging
func (i Identifier) Key() string {
	return i.Kind + ":" + i.Value
}

// ParentRef points at a biological parent and records which relationship
// established the link, so deleting that relationship can clear the pointer
type ParentRef struct {
	PersonID       uuid.UUID `json:"person_id"`
	RelationshipID uuid.UUID `json:"relationship_id"`
}

// LegalParent is a role-tagged entry in the legal-parent list
type LegalParent struct {
	PersonID       uuid.UUID    `json:"person_id"`
	Role           ParentalRole `json:"role"`
	RelationshipID uuid.UUID    `json:"relationship_id"`
}

// Key returns the stable dedupe key for union-by-key merging
func (p LegalParent) Key() string {
	return p.PersonID.String() + ":" + string(p.Role)
}

// SpouseLink is the denormalized mirror of a Spousal relationship,
// keyed by the owning relationship id
type SpouseLink struct {
	PersonID       uuid.UUID     `json:"person_id"`
	RelationshipID uuid.UUID     `json:"relationship_id"`
	Status         SpousalStatus `json:"status"`
	StartDate      *time.Time    `json:"start_date,omitempty"`
	EndDate        *time.Time    `json:"end_date,omitempty"`
}

// SiblingLink is the denormalized mirror of a sibling-family relationship,
// keyed by the owning relationship id
type SiblingLink struct {
	PersonID       uuid.UUID        `json:"person_id"`
	RelationshipID uuid.UUID        `json:"relationship_id"`
	Type           RelationshipType `json:"type"`
}

// PrivacySettings controls how a person record is exposed to viewers
type PrivacySettings struct {
	Visibility      string `json:"visibility"` // "tree", "collaborators", "private"
	ShowLivingDates bool   `json:"show_living_dates"`
}

// Person is an individual in a family tree, including denormalized
// relationship mirrors. Person rows are independent documents; the Graph
// Consistency Engine keeps the mirrors in sync with the relationship store.
type Person struct {
	ID           uuid.UUID `json:"id"`
	FamilyTreeID uuid.UUID `json:"family_tree_id"`

	FirstName  string   `json:"first_name"`
	MiddleName string   `json:"middle_name,omitempty"`
	LastName   string   `json:"last_name"`
	MaidenName string   `json:"maiden_name,omitempty"`
	Nickname   string   `json:"nickname,omitempty"`
	Titles     []string `json:"titles,omitempty"`
	Gender     Gender   `json:"gender"`

	BirthDate          *time.Time `json:"birth_date,omitempty"`
	BirthDateEstimated bool       `json:"birth_date_estimated,omitempty"`
	BirthPlace         string     `json:"birth_place,omitempty"`
	DeathDate          *time.Time `json:"death_date,omitempty"`
	DeathDateEstimated bool       `json:"death_date_estimated,omitempty"`
	DeathPlace         string     `json:"death_place,omitempty"`

	// Derived: true iff no death date. Recomputed on every save,
	// never independently set.
	IsLiving bool `json:"is_living"`

	Identifiers      []Identifier  `json:"identifiers,omitempty"`
	BiologicalMother *ParentRef    `json:"biological_mother,omitempty"`
	BiologicalFather *ParentRef    `json:"biological_father,omitempty"`
	LegalParents     []LegalParent `json:"legal_parents,omitempty"`
	Spouses          []SpouseLink  `json:"spouses,omitempty"`
	Siblings         []SiblingLink `json:"siblings,omitempty"`

	Notes   string          `json:"notes,omitempty"`
	Privacy PrivacySettings `json:"privacy"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeLiving derives IsLiving from the death date
func (p *Person) RecomputeLiving() {
	p.IsLiving = p.DeathDate == nil
}

// UpsertSpouseLink inserts the link, or replaces in place an entry with the
// same relationship id. Idempotent.
func (p *Person) UpsertSpouseLink(link SpouseLink) {
	for i, existing := range p.Spouses {
		if existing.RelationshipID == link.RelationshipID {
			p.Spouses[i] = link
			return
		}
	}
	p.Spouses = append(p.Spouses, link)
}

// RemoveSpouseLink strips any entry keyed by the relationship id
func (p *Person) RemoveSpouseLink(relationshipID uuid.UUID) {
	kept := p.Spouses[:0]
	for _, link := range p.Spouses {
		if link.RelationshipID != relationshipID {
			kept = append(kept, link)
		}
	}
	p.Spouses = kept
}

// UpsertSiblingLink inserts the link, or replaces in place an entry with the
// same relationship id. Idempotent.
func (p *Person) UpsertSiblingLink(link SiblingLink) {
	for i, existing := range p.Siblings {
		if existing.RelationshipID == link.RelationshipID {
			p.Siblings[i] = link
			return
		}
	}
	p.Siblings = append(p.Siblings, link)
}

// RemoveSiblingLink strips any entry keyed by the relationship id
func (p *Person) RemoveSiblingLink(relationshipID uuid.UUID) {
	kept := p.Siblings[:0]
	for _, link := range p.Siblings {
		if link.RelationshipID != relationshipID {
			kept = append(kept, link)
		}
	}
	p.Siblings = kept
}

// UpsertLegalParent inserts the entry, or replaces in place an entry with the
// same relationship id
func (p *Person) UpsertLegalParent(entry LegalParent) {
	for i, existing := range p.LegalParents {
		if existing.RelationshipID == entry.RelationshipID {
			p.LegalParents[i] = entry
			return
		}
	}
	p.LegalParents = append(p.LegalParents, entry)
}

// RemoveLegalParent strips any entry keyed by the relationship id
func (p *Person) RemoveLegalParent(relationshipID uuid.UUID) {
	kept := p.LegalParents[:0]
	for _, entry := range p.LegalParents {
		if entry.RelationshipID != relationshipID {
			kept = append(kept, entry)
		}
	}
	p.LegalParents = kept
}

// ClearBiologicalParent clears whichever biological-parent pointer was
// established by the given relationship
func (p *Person) ClearBiologicalParent(relationshipID uuid.UUID) {
	if p.BiologicalMother != nil && p.BiologicalMother.RelationshipID == relationshipID {
		p.BiologicalMother = nil
	}
	if p.BiologicalFather != nil && p.BiologicalFather.RelationshipID == relationshipID {
		p.BiologicalFather = nil
	}
}
