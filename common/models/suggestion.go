package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SuggestionStatus is the review state of a merge suggestion
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionDeclined SuggestionStatus = "declined"
)

// PersonSummary is a compact rendering of a person used inside suggestion
// previews
type PersonSummary struct {
	ID        uuid.UUID  `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	DeathDate *time.Time `json:"death_date,omitempty"`
}

/// SuggestionPreview is the reviewer context attached to a suggestion:
// the new person's immediate subtree plus a JSON merge patch describing
// what accepting would change on the surviving record
type SuggestionPreview struct {
	NewPerson  PersonSummary   `json:"new_person"`
	Parents    []PersonSummary `json:"parents,omitempty"`
	Spouses    []PersonSummary `json:"spouses,omitempty"`
	Children   []PersonSummary `json:"children,omitempty"`
	MergePatch json.RawMessage `json:"merge_patch,omitempty"`
}

// MergeSuggestion proposes consolidating two person records believed to
// denote the same individual. NewPerson is absorbed into ExistingPerson
// on accept.
type MergeSuggestion struct {
	ID               uuid.UUID         `json:"id"`
	FamilyTreeID     uuid.UUID         `json:"family_tree_id"`
	NewPersonID      uuid.UUID         `json:"new_person_id"`
	ExistingPersonID uuid.UUID         `json:"existing_person_id"`
	Confidence       float64           `json:"confidence"`
	Status           SuggestionStatus  `json:"status"`
	Preview          SuggestionPreview `json:"preview"`
	CreatedAt        time.Time         `json:"created_at"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy       string            `json:"resolved_by,omitempty"`
}
