package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType classifies an edge between two persons
type RelationshipType string

const (
	TypeParentChild     RelationshipType = "parent_child"
	TypeGuardianChild   RelationshipType = "guardian_child"
	TypeSpousal         RelationshipType = "spousal"
	TypeSibling         RelationshipType = "sibling"
	TypeHalfSibling     RelationshipType = "half_sibling"
	TypeStepSibling     RelationshipType = "step_sibling"
	TypeAdoptiveSibling RelationshipType = "adoptive_sibling"
	TypeFosterSibling   RelationshipType = "foster_sibling"
	TypeOther           RelationshipType = "other"
)

// ParentalRole tags a parent-child edge. Mother and father map to the
// biological-parent pointers on the child, guardian only to the legal list.
type ParentalRole string

const (
	RoleMother   ParentalRole = "mother"
	RoleFather   ParentalRole = "father"
	RoleGuardian ParentalRole = "guardian"
)

// SpousalStatus is the current state of a spousal relationship
type SpousalStatus string

const (
	StatusMarried   SpousalStatus = "married"
	StatusDivorced  SpousalStatus = "divorced"
	StatusSeparated SpousalStatus = "separated"
	StatusWidowed   SpousalStatus = "widowed"
	StatusPartner   SpousalStatus = "partner"
)

// RelationshipEvent is a sub-event attached to a relationship
// (marriage, adoption, divorce)
type RelationshipEvent struct {
	Type  string     `json:"type"`
	Date  *time.Time `json:"date,omitempty"`
	Place string     `json:"place,omitempty"`
}

// Relationship is a source-of-truth edge between two persons.
// For parent-child and guardian-child edges, Person1 is the parent and
// Person2 the child. Created, updated and deleted only through the Graph
// Consistency Engine.
type Relationship struct {
	ID           uuid.UUID        `json:"id"`
	FamilyTreeID uuid.UUID        `json:"family_tree_id"`
	Person1ID    uuid.UUID        `json:"person1_id"`
	Person2ID    uuid.UUID        `json:"person2_id"`
	Type         RelationshipType `json:"type"`

	// Required iff Type is parent_child or guardian_child
	ParentalRole *ParentalRole `json:"parental_role,omitempty"`

	// Required iff Type is spousal
	Status    *SpousalStatus `json:"status,omitempty"`
	StartDate *time.Time     `json:"start_date,omitempty"`
	EndDate   *time.Time     `json:"end_date,omitempty"`

	Notes  string              `json:"notes,omitempty"`
	Events []RelationshipEvent `json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSiblingFamily reports whether the type belongs to the sibling family
// of subtypes
func (t RelationshipType) IsSiblingFamily() bool {
	switch t {
	case TypeSibling, TypeHalfSibling, TypeStepSibling, TypeAdoptiveSibling, TypeFosterSibling:
		return true
	}
	return false
}

// IsParental reports whether the type carries a parental role
func (t RelationshipType) IsParental() bool {
	return t == TypeParentChild || t == TypeGuardianChild
}

// Valid reports whether the type is one of the known values
func (t RelationshipType) Valid() bool {
	switch t {
	case TypeParentChild, TypeGuardianChild, TypeSpousal, TypeOther:
		return true
	}
	return t.IsSiblingFamily()
}

// OtherPerson returns the endpoint opposite to the given person id
func (r *Relationship) OtherPerson(personID uuid.UUID) uuid.UUID {
	if r.Person1ID == personID {
		return r.Person2ID
	}
	return r.Person1ID
}

// Involves reports whether the person is one of the two endpoints
func (r *Relationship) Involves(personID uuid.UUID) bool {
	return r.Person1ID == personID || r.Person2ID == personID
}
