package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/merge"
	"github.com/arborhq/lineage/common/models"
	"github.com/arborhq/lineage/common/queue"
)

// MergeService is the merge resolver: it reviews duplicate suggestions and,
// on accept, absorbs the new person into the existing one.
//
// Accept orders its sub-writes (existing-person save, new-person delete,
// suggestion status, history append, optional tree cascade) so a crash
// after any prefix leaves the suggestion retryable, and every step is
// idempotent against an already-merged state.
type MergeService struct {
	persons       PersonStore
	relationships RelationshipStore
	trees         TreeStore
	suggestions   SuggestionStore
	history       HistoryStore
	queue         queue.Queue
	log           *logger.Logger
}

// NewMergeService creates a new merge service
func NewMergeService(persons PersonStore, relationships RelationshipStore, trees TreeStore, suggestions SuggestionStore, history HistoryStore, q queue.Queue, log *logger.Logger) *MergeService {
	return &MergeService{
		persons:       persons,
		relationships: relationships,
		trees:         trees,
		suggestions:   suggestions,
		history:       history,
		queue:         q,
		log:           log,
	}
}

// ListSuggestions returns a tree's suggestions with the given status
func (s *MergeService) ListSuggestions(ctx context.Context, userID string, treeID uuid.UUID, status models.SuggestionStatus) ([]*models.MergeSuggestion, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("reviewing merge suggestions requires the editor role")
	}
	if status == "" {
		status = models.SuggestionPending
	}
	return s.suggestions.ListByTree(ctx, treeID, status)
}

// Decline marks a pending suggestion as declined, without touching either
// person record
func (s *MergeService) Decline(ctx context.Context, userID string, suggestionID uuid.UUID) error {
	suggestion, err := s.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		return err
	}

	tree, err := s.trees.GetByID(ctx, suggestion.FamilyTreeID)
	if err != nil {
		return err
	}
	if !tree.CanEdit(userID) {
		return apperr.Forbidden("reviewing merge suggestions requires the editor role")
	}

	resolved, err := s.suggestions.ResolveIfPending(ctx, suggestionID, models.SuggestionDeclined, userID)
	if err != nil {
		return err
	}
	if !resolved {
		return apperr.Conflict("suggestion is no longer pending")
	}

	return nil
}

// Accept resolves a pending suggestion: reconciles the two person records,
// rewrites the absorbed person's edges onto the survivor, deletes the
// absorbed person, and cascades a tree merge when the two persons live in
// different trees.
func (s *MergeService) Accept(ctx context.Context, userID string, suggestionID uuid.UUID) (*models.Person, error) {
	suggestion, err := s.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Status != models.SuggestionPending {
		return nil, apperr.Conflict("suggestion is no longer pending")
	}

	// A missing person leaves the suggestion pending for retry or a
	// manual decline
	existing, err := s.persons.GetByID(ctx, suggestion.ExistingPersonID)
	if err != nil {
		return nil, err
	}
	absorbed, err := s.persons.GetByID(ctx, suggestion.NewPersonID)
	if err != nil {
		return nil, err
	}

	existingTree, err := s.trees.GetByID(ctx, existing.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	crossTree := absorbed.FamilyTreeID != existing.FamilyTreeID

	var absorbedTree *models.FamilyTree
	if crossTree {
		absorbedTree, err = s.trees.GetByID(ctx, absorbed.FamilyTreeID)
		if err != nil {
			return nil, err
		}
	}

	if !existingTree.CanManage(userID) || (crossTree && !absorbedTree.CanManage(userID)) {
		return nil, apperr.Forbidden("accepting a merge requires the admin role on the affected trees")
	}

	// 1-4. Field reconciliation via the per-field policy table
	merged := merge.Persons(existing, absorbed)

	// Rewrite the absorbed person's edges to the surviving id
	edgesDropped, err := s.absorbEdges(ctx, merged, absorbed.ID, crossTree)
	if err != nil {
		return nil, err
	}

	// 5a. Write the merged record onto the survivor
	merged.RecomputeLiving()
	if err := s.persons.Update(ctx, merged); err != nil {
		return nil, err
	}

	// 5b. Delete the absorbed person
	if err := s.persons.Delete(ctx, absorbed.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	// 5c. Resolve the suggestion (CAS from pending)
	resolved, err := s.suggestions.ResolveIfPending(ctx, suggestionID, models.SuggestionAccepted, userID)
	if err != nil {
		return nil, err
	}
	if !resolved {
		// A concurrent accept won the CAS; the merge itself is idempotent,
		// so the state is already what that winner produced
		s.log.Warn("suggestion resolved concurrently", "suggestion_id", suggestionID)
	}

	// 5d. History entry with the full merged snapshot
	appendHistoryEntry(ctx, s.history, s.log, merged, models.ChangeMerge, userID)

	// 6. Cross-tree cascade
	if crossTree {
		if err := s.cascadeTreeMerge(ctx, existingTree, absorbedTree, edgesDropped); err != nil {
			return nil, err
		}
	} else {
		existingTree.Stats.PersonCount--
		if existingTree.Stats.PersonCount < 0 {
			existingTree.Stats.PersonCount = 0
		}
		existingTree.Stats.RelationshipCount -= edgesDropped
		if existingTree.Stats.RelationshipCount < 0 {
			existingTree.Stats.RelationshipCount = 0
		}
		if err := s.trees.Update(ctx, existingTree); err != nil {
			s.log.Warn("failed to update tree statistics", "tree_id", existingTree.ID, "error", err)
		}
	}

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "person.merged",
		TreeID:    existingTree.ID.String(),
		ActorID:   userID,
		SubjectID: merged.ID.String(),
		Detail:    "absorbed " + absorbed.ID.String(),
	})

	return merged, nil
}

// absorbEdges rewrites every edge touching the absorbed person onto the
// survivor. Edges directly connecting the pair would become self-edges and
// are deleted instead; mirrors on the far endpoints are rewritten to point
// at the surviving id. Returns how many edges were dropped.
func (s *MergeService) absorbEdges(ctx context.Context, survivor *models.Person, absorbedID uuid.UUID, crossTree bool) (int, error) {
	rels, err := s.relationships.ListByPerson(ctx, absorbedID)
	if err != nil {
		return 0, err
	}

	dropped := 0
	for _, rel := range rels {
		if rel.OtherPerson(absorbedID) == survivor.ID {
			// Would become a self-edge after rewriting
			if err := s.relationships.Delete(ctx, rel.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
				return dropped, err
			}
			survivor.RemoveSpouseLink(rel.ID)
			survivor.RemoveSiblingLink(rel.ID)
			survivor.RemoveLegalParent(rel.ID)
			survivor.ClearBiologicalParent(rel.ID)
			dropped++
			continue
		}

		if rel.Person1ID == absorbedID {
			rel.Person1ID = survivor.ID
		} else {
			rel.Person2ID = survivor.ID
		}
		if crossTree {
			rel.FamilyTreeID = survivor.FamilyTreeID
		}
		if err := s.relationships.Update(ctx, rel); err != nil {
			return dropped, err
		}

		// Refresh the mirror on both the survivor and the far endpoint
		mirrorOntoPerson(survivor, rel)

		other, err := s.persons.GetByID(ctx, rel.OtherPerson(survivor.ID))
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				continue
			}
			return dropped, err
		}
		rewriteMirrorTarget(other, rel.ID, absorbedID, survivor.ID)
		mirrorOntoPerson(other, rel)
		if err := s.persons.Update(ctx, other); err != nil {
			return dropped, err
		}
	}

	return dropped, nil
}

// cascadeTreeMerge moves every person of the absorbed tree into the
// surviving tree, unions collaborator lists (the surviving tree's role
// wins on conflict), sums aggregate statistics and deletes the now-empty
// source tree
func (s *MergeService) cascadeTreeMerge(ctx context.Context, into, from *models.FamilyTree, edgesDropped int) error {
	if err := s.persons.ReassignTree(ctx, from.ID, into.ID); err != nil {
		return err
	}

	members := map[string]bool{into.OwnerID: true}
	for _, c := range into.Collaborators {
		members[c.UserID] = true
	}
	for _, c := range from.Collaborators {
		if !members[c.UserID] {
			into.Collaborators = append(into.Collaborators, c)
			members[c.UserID] = true
		}
	}
	// The source owner keeps access to their records as an admin
	// collaborator of the surviving tree
	if !members[from.OwnerID] {
		now := time.Now().UTC()
		into.Collaborators = append(into.Collaborators, models.Collaborator{
			UserID:     from.OwnerID,
			Role:       models.RoleAdmin,
			InvitedAt:  now,
			AcceptedAt: &now,
		})
	}

	into.Stats.PersonCount += from.Stats.PersonCount - 1 // the absorbed person is gone
	into.Stats.RelationshipCount += from.Stats.RelationshipCount - edgesDropped
	if into.Stats.PersonCount < 0 {
		into.Stats.PersonCount = 0
	}
	if into.Stats.RelationshipCount < 0 {
		into.Stats.RelationshipCount = 0
	}

	if err := s.trees.Update(ctx, into); err != nil {
		return err
	}
	if err := s.trees.Delete(ctx, from.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	s.log.Info("cascaded tree merge", "from_tree", from.ID, "into_tree", into.ID)
	return nil
}

// rewriteMirrorTarget updates any mirror entry keyed by the relationship
// id so its other-person pointer names the surviving id
func rewriteMirrorTarget(person *models.Person, relID, oldTarget, newTarget uuid.UUID) {
	for i := range person.Spouses {
		if person.Spouses[i].RelationshipID == relID && person.Spouses[i].PersonID == oldTarget {
			person.Spouses[i].PersonID = newTarget
		}
	}
	for i := range person.Siblings {
		if person.Siblings[i].RelationshipID == relID && person.Siblings[i].PersonID == oldTarget {
			person.Siblings[i].PersonID = newTarget
		}
	}
	for i := range person.LegalParents {
		if person.LegalParents[i].RelationshipID == relID && person.LegalParents[i].PersonID == oldTarget {
			person.LegalParents[i].PersonID = newTarget
		}
	}
	if person.BiologicalMother != nil && person.BiologicalMother.RelationshipID == relID && person.BiologicalMother.PersonID == oldTarget {
		person.BiologicalMother.PersonID = newTarget
	}
	if person.BiologicalFather != nil && person.BiologicalFather.RelationshipID == relID && person.BiologicalFather.PersonID == oldTarget {
		person.BiologicalFather.PersonID = newTarget
	}
}

// appendHistoryEntry writes the next versioned snapshot for a person;
// failures are logged rather than failing the primary write
func appendHistoryEntry(ctx context.Context, store HistoryStore, log *logger.Logger, person *models.Person, change models.ChangeType, userID string) {
	version, err := store.NextVersion(ctx, person.ID)
	if err != nil {
		log.Error("failed to allocate history version", "person_id", person.ID, "error", err)
		return
	}

	entry := &models.PersonHistory{
		ID:         uuid.New(),
		PersonID:   person.ID,
		Version:    version,
		ChangeType: change,
		Snapshot:   *person,
		ChangedBy:  userID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.Append(ctx, entry); err != nil {
		log.Error("failed to append history", "person_id", person.ID, "error", err)
	}
}
