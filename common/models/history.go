package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a person-history entry
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeMerge  ChangeType = "merge"
	ChangeDelete ChangeType = "delete"
	ChangeRevert ChangeType = "revert"
)

// PersonHistory is an append-only versioned snapshot of a person record.
// Restoring a snapshot is an audited forward action (a new "revert" entry),
// not a true undo.
type PersonHistory struct {
	ID         uuid.UUID  `json:"id"`
	PersonID   uuid.UUID  `json:"person_id"`
	Version    int        `json:"version"`
	ChangeType ChangeType `json:"change_type"`
	Snapshot   Person     `json:"snapshot"`
	ChangedBy  string     `json:"changed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
