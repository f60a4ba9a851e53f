package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
	"github.com/arborhq/lineage/common/queue"
)

// GraphService is the Graph Consistency Engine: the only writer of
// relationship edges. It validates the invariants, persists the edge, and
// keeps the denormalized mirrors on both endpoint persons in sync.
//
// The edge write plus its two mirror writes are a best-effort sequence, not
// a transaction. If a mirror write fails, the engine rolls the edge back;
// if even the rollback fails, the divergence is repaired by
// SyncPersonMirrors on the next read or update of the affected person.
type GraphService struct {
	persons       PersonStore
	relationships RelationshipStore
	trees         TreeStore
	queue         queue.Queue
	log           *logger.Logger
}

// NewGraphService creates a new graph consistency engine
func NewGraphService(persons PersonStore, relationships RelationshipStore, trees TreeStore, q queue.Queue, log *logger.Logger) *GraphService {
	return &GraphService{
		persons:       persons,
		relationships: relationships,
		trees:         trees,
		queue:         q,
		log:           log,
	}
}

// CreateRelationshipRequest is the input for creating an edge
type CreateRelationshipRequest struct {
	Person1ID    uuid.UUID                  `json:"person1_id"`
	Person2ID    uuid.UUID                  `json:"person2_id"`
	Type         models.RelationshipType   `json:"type"`
	ParentalRole *models.ParentalRole       `json:"parental_role,omitempty"`
	Status       *models.SpousalStatus      `json:"status,omitempty"`
	StartDate    *time.Time                 `json:"start_date,omitempty"`
	EndDate      *time.Time                 `json:"end_date,omitempty"`
	Notes        string                     `json:"notes,omitempty"`
	Events       []models.RelationshipEvent `json:"events,omitempty"`
}

// UpdateRelationshipRequest is a partial patch. Person endpoints and type
// are immutable; sending them is rejected with Conflict.
type UpdateRelationshipRequest struct {
	Person1ID    *uuid.UUID                 `json:"person1_id,omitempty"`
	Person2ID    *uuid.UUID                 `json:"person2_id,omitempty"`
	Type         *models.RelationshipType   `json:"type,omitempty"`
	ParentalRole *models.ParentalRole       `json:"parental_role,omitempty"`
	Status       *models.SpousalStatus      `json:"status,omitempty"`
	StartDate    *time.Time                 `json:"start_date,omitempty"`
	EndDate      *time.Time                 `json:"end_date,omitempty"`
	Notes        *string                    `json:"notes,omitempty"`
	Events       []models.RelationshipEvent `json:"events,omitempty"`
}

// CreateRelationship validates and persists a new edge, then mirrors it
// onto both endpoint persons
func (s *GraphService) CreateRelationship(ctx context.Context, userID string, req *CreateRelationshipRequest) (*models.Relationship, error) {
	if !req.Type.Valid() {
		return nil, apperr.Validation("unknown relationship type", map[string]string{"type": string(req.Type)})
	}
	if req.Person1ID == req.Person2ID {
		return nil, apperr.Validation("a relationship requires two distinct persons", map[string]string{
			"person2_id": "must differ from person1_id",
		})
	}

	person1, err := s.persons.GetByID(ctx, req.Person1ID)
	if err != nil {
		return nil, err
	}
	person2, err := s.persons.GetByID(ctx, req.Person2ID)
	if err != nil {
		return nil, err
	}
	if person1.FamilyTreeID != person2.FamilyTreeID {
		return nil, apperr.Validation("persons belong to different trees", nil)
	}

	tree, err := s.trees.GetByID(ctx, person1.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing this tree requires the editor role")
	}

	if err := validatePayload(req.Type, req.ParentalRole, req.Status); err != nil {
		return nil, err
	}

	if err := s.checkUniqueness(ctx, tree.ID, req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rel := &models.Relationship{
		ID:           uuid.New(),
		FamilyTreeID: tree.ID,
		Person1ID:    req.Person1ID,
		Person2ID:    req.Person2ID,
		Type:         req.Type,
		ParentalRole: req.ParentalRole,
		Status:       req.Status,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Notes:        req.Notes,
		Events:       req.Events,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.relationships.Create(ctx, rel); err != nil {
		return nil, err
	}

	if err := s.applyMirrors(ctx, rel, person1, person2); err != nil {
		// The edge must not survive without its mirrors
		if rbErr := s.relationships.Delete(ctx, rel.ID); rbErr != nil {
			s.log.Error("mirror write failed and rollback failed, pair flagged for repair",
				"relationship_id", rel.ID, "error", err, "rollback_error", rbErr)
		}
		return nil, apperr.Internal("failed to mirror relationship onto persons", err)
	}

	s.bumpRelationshipCount(ctx, tree, 1)

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "relationship.created",
		TreeID:    tree.ID.String(),
		ActorID:   userID,
		SubjectID: rel.ID.String(),
		Detail:    string(rel.Type),
	})

	return rel, nil
}

// UpdateRelationship applies a partial patch to an edge. A spousal status
// or date change re-syncs the mirrored entry on both persons, inserting it
// if a prior failure left it absent.
func (s *GraphService) UpdateRelationship(ctx context.Context, userID string, id uuid.UUID, patch *UpdateRelationshipRequest) (*models.Relationship, error) {
	if patch.Person1ID != nil || patch.Person2ID != nil || patch.Type != nil {
		return nil, apperr.Conflict("person endpoints and type are immutable")
	}

	rel, err := s.relationships.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tree, err := s.trees.GetByID(ctx, rel.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing this tree requires the editor role")
	}

	if patch.Status != nil && rel.Type != models.TypeSpousal {
		return nil, apperr.Validation("status applies only to spousal relationships", nil)
	}
	if patch.ParentalRole != nil {
		if !rel.Type.IsParental() {
			return nil, apperr.Validation("parental_role applies only to parent-child relationships", nil)
		}
		if err := s.checkRoleChange(ctx, rel, *patch.ParentalRole); err != nil {
			return nil, err
		}
	}

	spousalChanged := false
	roleChanged := false

	if patch.Status != nil && (rel.Status == nil || *rel.Status != *patch.Status) {
		rel.Status = patch.Status
		spousalChanged = true
	}
	if patch.StartDate != nil {
		rel.StartDate = patch.StartDate
		spousalChanged = rel.Type == models.TypeSpousal
	}
	if patch.EndDate != nil {
		rel.EndDate = patch.EndDate
		spousalChanged = rel.Type == models.TypeSpousal
	}
	if patch.ParentalRole != nil && (rel.ParentalRole == nil || *rel.ParentalRole != *patch.ParentalRole) {
		rel.ParentalRole = patch.ParentalRole
		roleChanged = true
	}
	if patch.Notes != nil {
		rel.Notes = *patch.Notes
	}
	if patch.Events != nil {
		rel.Events = patch.Events
	}

	if err := s.relationships.Update(ctx, rel); err != nil {
		return nil, err
	}

	if spousalChanged || roleChanged {
		person1, err := s.persons.GetByID(ctx, rel.Person1ID)
		if err != nil {
			return nil, err
		}
		person2, err := s.persons.GetByID(ctx, rel.Person2ID)
		if err != nil {
			return nil, err
		}
		if roleChanged {
			// Re-derive the child's parent pointers from scratch
			person2.ClearBiologicalParent(rel.ID)
			person2.RemoveLegalParent(rel.ID)
		}
		if err := s.applyMirrors(ctx, rel, person1, person2); err != nil {
			return nil, apperr.Internal("failed to re-sync relationship mirrors", err)
		}
	}

	return rel, nil
}

// DeleteRelationship removes the edge and strips the matching mirrored
// entries from both persons. For parent-child edges it also clears any
// biological-parent pointer that referenced this edge.
func (s *GraphService) DeleteRelationship(ctx context.Context, userID string, id uuid.UUID) error {
	rel, err := s.relationships.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tree, err := s.trees.GetByID(ctx, rel.FamilyTreeID)
	if err != nil {
		return err
	}
	if !tree.CanEdit(userID) {
		return apperr.Forbidden("editing this tree requires the editor role")
	}

	if err := s.relationships.Delete(ctx, id); err != nil {
		return err
	}

	for _, personID := range []uuid.UUID{rel.Person1ID, rel.Person2ID} {
		if err := s.stripMirror(ctx, personID, rel); err != nil {
			// Stale mirror entries are repaired on the person's next touch
			s.log.Warn("failed to strip mirror, will self-heal",
				"person_id", personID, "relationship_id", rel.ID, "error", err)
		}
	}

	s.bumpRelationshipCount(ctx, tree, -1)

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "relationship.deleted",
		TreeID:    tree.ID.String(),
		ActorID:   userID,
		SubjectID: rel.ID.String(),
		Detail:    string(rel.Type),
	})

	return nil
}

// GetRelationship returns an edge, enforcing view permission
func (s *GraphService) GetRelationship(ctx context.Context, userID string, id uuid.UUID) (*models.Relationship, error) {
	rel, err := s.relationships.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.GetByID(ctx, rel.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanView(userID) {
		return nil, apperr.Forbidden("viewing this tree requires access")
	}
	return rel, nil
}

// SyncPersonMirrors reconciles a person's denormalized links against the
// relationship store: inserts missing mirrors, refreshes drifted ones and
// drops entries whose edge no longer exists. Returns true if the person
// document changed and was saved.
func (s *GraphService) SyncPersonMirrors(ctx context.Context, person *models.Person) (bool, error) {
	rels, err := s.relationships.ListByPerson(ctx, person.ID)
	if err != nil {
		return false, err
	}

	live := make(map[uuid.UUID]*models.Relationship, len(rels))
	for _, rel := range rels {
		live[rel.ID] = rel
	}

	before := snapshotMirrors(person)

	// Drop mirrors whose edge is gone
	for _, link := range append([]models.SpouseLink(nil), person.Spouses...) {
		if _, ok := live[link.RelationshipID]; !ok {
			person.RemoveSpouseLink(link.RelationshipID)
		}
	}
	for _, link := range append([]models.SiblingLink(nil), person.Siblings...) {
		if _, ok := live[link.RelationshipID]; !ok {
			person.RemoveSiblingLink(link.RelationshipID)
		}
	}
	for _, entry := range append([]models.LegalParent(nil), person.LegalParents...) {
		if _, ok := live[entry.RelationshipID]; !ok {
			person.RemoveLegalParent(entry.RelationshipID)
		}
	}
	if person.BiologicalMother != nil {
		if _, ok := live[person.BiologicalMother.RelationshipID]; !ok {
			person.BiologicalMother = nil
		}
	}
	if person.BiologicalFather != nil {
		if _, ok := live[person.BiologicalFather.RelationshipID]; !ok {
			person.BiologicalFather = nil
		}
	}

	// Insert or refresh mirrors for live edges
	for _, rel := range rels {
		mirrorOntoPerson(person, rel)
	}

	if snapshotMirrors(person) == before {
		return false, nil
	}

	if err := s.persons.Update(ctx, person); err != nil {
		return false, fmt.Errorf("persist repaired mirrors: %w", err)
	}
	s.log.Info("repaired denormalized mirrors", "person_id", person.ID)
	return true, nil
}

// checkUniqueness enforces the sibling-pair and biological-role invariants
func (s *GraphService) checkUniqueness(ctx context.Context, treeID uuid.UUID, req *CreateRelationshipRequest) error {
	if req.Type.IsSiblingFamily() {
		exists, err := s.relationships.ExistsPair(ctx, treeID, req.Person1ID, req.Person2ID, req.Type)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(fmt.Sprintf("a %s relationship already exists for this pair", req.Type))
		}
	}

	if req.Type == models.TypeParentChild && req.ParentalRole != nil && *req.ParentalRole != models.RoleGuardian {
		exists, err := s.relationships.ExistsParentRole(ctx, req.Person2ID, *req.ParentalRole)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(fmt.Sprintf("child already has a biological %s", *req.ParentalRole))
		}
	}

	return nil
}

// checkRoleChange enforces biological-role uniqueness when a patch moves a
// parent-child edge to a different role
func (s *GraphService) checkRoleChange(ctx context.Context, rel *models.Relationship, newRole models.ParentalRole) error {
	if rel.ParentalRole != nil && *rel.ParentalRole == newRole {
		return nil
	}
	if rel.Type != models.TypeParentChild || newRole == models.RoleGuardian {
		return nil
	}
	exists, err := s.relationships.ExistsParentRole(ctx, rel.Person2ID, newRole)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict(fmt.Sprintf("child already has a biological %s", newRole))
	}
	return nil
}

// applyMirrors writes the denormalized entries for an edge onto both
// endpoint persons. Insert-or-replace by relationship id, so re-applying
// is idempotent.
func (s *GraphService) applyMirrors(ctx context.Context, rel *models.Relationship, person1, person2 *models.Person) error {
	mirrorOntoPerson(person1, rel)
	mirrorOntoPerson(person2, rel)

	if err := s.persons.Update(ctx, person1); err != nil {
		return fmt.Errorf("mirror onto person1: %w", err)
	}
	if err := s.persons.Update(ctx, person2); err != nil {
		return fmt.Errorf("mirror onto person2: %w", err)
	}
	return nil
}

// stripMirror removes the edge's denormalized entries from one person
func (s *GraphService) stripMirror(ctx context.Context, personID uuid.UUID, rel *models.Relationship) error {
	person, err := s.persons.GetByID(ctx, personID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil // endpoint already deleted
		}
		return err
	}

	switch {
	case rel.Type == models.TypeSpousal:
		person.RemoveSpouseLink(rel.ID)
	case rel.Type.IsSiblingFamily():
		person.RemoveSiblingLink(rel.ID)
	case rel.Type.IsParental():
		if person.ID == rel.Person2ID {
			person.ClearBiologicalParent(rel.ID)
			person.RemoveLegalParent(rel.ID)
		}
	}

	return s.persons.Update(ctx, person)
}

// bumpRelationshipCount adjusts the tree's aggregate counter; failures are
// logged, counters are informational
func (s *GraphService) bumpRelationshipCount(ctx context.Context, tree *models.FamilyTree, delta int) {
	tree.Stats.RelationshipCount += delta
	if tree.Stats.RelationshipCount < 0 {
		tree.Stats.RelationshipCount = 0
	}
	if err := s.trees.Update(ctx, tree); err != nil {
		s.log.Warn("failed to update tree statistics", "tree_id", tree.ID, "error", err)
	}
}

// mirrorOntoPerson writes the denormalized entry an edge implies for one
// of its endpoints. No-op for types without mirrors.
func mirrorOntoPerson(person *models.Person, rel *models.Relationship) {
	if !rel.Involves(person.ID) {
		return
	}

	switch {
	case rel.Type == models.TypeSpousal:
		link := models.SpouseLink{
			PersonID:       rel.OtherPerson(person.ID),
			RelationshipID: rel.ID,
			StartDate:      rel.StartDate,
			EndDate:        rel.EndDate,
		}
		if rel.Status != nil {
			link.Status = *rel.Status
		}
		person.UpsertSpouseLink(link)

	case rel.Type.IsSiblingFamily():
		person.UpsertSiblingLink(models.SiblingLink{
			PersonID:       rel.OtherPerson(person.ID),
			RelationshipID: rel.ID,
			Type:           rel.Type,
		})

	case rel.Type.IsParental():
		// Mirrors live on the child side only
		if person.ID != rel.Person2ID || rel.ParentalRole == nil {
			return
		}
		ref := models.ParentRef{PersonID: rel.Person1ID, RelationshipID: rel.ID}
		switch *rel.ParentalRole {
		case models.RoleMother:
			if rel.Type == models.TypeParentChild {
				person.BiologicalMother = &ref
			}
		case models.RoleFather:
			if rel.Type == models.TypeParentChild {
				person.BiologicalFather = &ref
			}
		}
		person.UpsertLegalParent(models.LegalParent{
			PersonID:       rel.Person1ID,
			Role:           *rel.ParentalRole,
			RelationshipID: rel.ID,
		})
	}
}

// snapshotMirrors renders the mirror state for change detection
func snapshotMirrors(p *models.Person) string {
	out := ""
	for _, l := range p.Spouses {
		out += fmt.Sprintf("sp:%s:%s:%s;", l.RelationshipID, l.PersonID, l.Status)
	}
	for _, l := range p.Siblings {
		out += fmt.Sprintf("si:%s:%s:%s;", l.RelationshipID, l.PersonID, l.Type)
	}
	for _, l := range p.LegalParents {
		out += fmt.Sprintf("lp:%s:%s:%s;", l.RelationshipID, l.PersonID, l.Role)
	}
	if p.BiologicalMother != nil {
		out += "bm:" + p.BiologicalMother.RelationshipID.String() + ";"
	}
	if p.BiologicalFather != nil {
		out += "bf:" + p.BiologicalFather.RelationshipID.String() + ";"
	}
	return out
}

// validatePayload enforces the type-conditional payload invariants
func validatePayload(relType models.RelationshipType, role *models.ParentalRole, status *models.SpousalStatus) error {
	if relType.IsParental() {
		if role == nil {
			return apperr.Validation("parental_role is required for parent-child relationships",
				map[string]string{"parental_role": "required"})
		}
		switch *role {
		case models.RoleMother, models.RoleFather, models.RoleGuardian:
		default:
			return apperr.Validation("unknown parental role", map[string]string{"parental_role": string(*role)})
		}
	} else if role != nil {
		return apperr.Validation("parental_role applies only to parent-child relationships",
			map[string]string{"parental_role": "unexpected"})
	}

	if relType == models.TypeSpousal {
		if status == nil {
			return apperr.Validation("status is required for spousal relationships",
				map[string]string{"status": "required"})
		}
	} else if status != nil {
		return apperr.Validation("status applies only to spousal relationships",
			map[string]string{"status": "unexpected"})
	}

	return nil
}
