package models

import (
	"time"

	"github.com/google/uuid"
)

// CollaboratorRole grades what a collaborator may do in a tree
type CollaboratorRole string

const (
	RoleViewer CollaboratorRole = "viewer"
	RoleEditor CollaboratorRole = "editor"
	RoleAdmin  CollaboratorRole = "admin"
)

// Collaborator is a user invited to a tree. AcceptedAt is nil while the
// invitation is pending; pending collaborators hold no permissions.
type Collaborator struct {
	UserID     string           `json:"user_id"`
	Role       CollaboratorRole `json:"role"`
	InvitedAt  time.Time        `json:"invited_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
}

// Tree privacy settings
const (
	TreePrivacyPrivate = "private"
	TreePrivacyShared  = "shared"
	TreePrivacyPublic  = "public"
)

// ValidTreePrivacy reports whether the value is a known privacy setting
func ValidTreePrivacy(p string) bool {
	return p == TreePrivacyPrivate || p == TreePrivacyShared || p == TreePrivacyPublic
}

// TreeStatistics are aggregate counters maintained on mutation and summed
// on tree merge
type TreeStatistics struct {
	PersonCount       int `json:"person_count"`
	RelationshipCount int `json:"relationship_count"`
}

// FamilyTree is a named collection of Person/Relationship records with an
// owner and optional collaborators
type FamilyTree struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	OwnerID       string         `json:"owner_id"`
	Privacy       string         `json:"privacy"` // "private", "shared", "public"
	Collaborators []Collaborator `json:"collaborators,omitempty"`
	Stats         TreeStatistics `json:"stats"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RoleOf returns the effective role of a user in this tree: owners are
// admins, accepted collaborators carry their granted role, everyone else
// has none
func (t *FamilyTree) RoleOf(userID string) (CollaboratorRole, bool) {
	if userID == t.OwnerID {
		return RoleAdmin, true
	}
	for _, c := range t.Collaborators {
		if c.UserID == userID && c.AcceptedAt != nil {
			return c.Role, true
		}
	}
	return "", false
}

// CanView reports whether the user may read the tree
func (t *FamilyTree) CanView(userID string) bool {
	if t.Privacy == "public" {
		return true
	}
	_, ok := t.RoleOf(userID)
	return ok
}

// CanEdit reports whether the user may mutate persons and relationships
func (t *FamilyTree) CanEdit(userID string) bool {
	role, ok := t.RoleOf(userID)
	return ok && (role == RoleEditor || role == RoleAdmin)
}

// CanManage reports whether the user may manage collaborators and merges
func (t *FamilyTree) CanManage(userID string) bool {
	role, ok := t.RoleOf(userID)
	return ok && role == RoleAdmin
}
