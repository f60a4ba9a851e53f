package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
	"github.com/arborhq/lineage/common/queue"
)

// TreeService manages family trees, their collaborator lists and privacy
type TreeService struct {
	trees         TreeStore
	persons       PersonStore
	relationships RelationshipStore
	queue         queue.Queue
	log           *logger.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(trees TreeStore, persons PersonStore, relationships RelationshipStore, q queue.Queue, log *logger.Logger) *TreeService {
	return &TreeService{
		trees:         trees,
		persons:       persons,
		relationships: relationships,
		queue:         q,
		log:           log,
	}
}

// CreateTreeRequest carries the caller-supplied tree fields
type CreateTreeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Privacy     string `json:"privacy"`
}

// CreateTree creates an empty tree owned by the caller
func (s *TreeService) CreateTree(ctx context.Context, userID string, req *CreateTreeRequest) (*models.FamilyTree, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("tree name is required", nil)
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = models.TreePrivacyPrivate
	}
	if !models.ValidTreePrivacy(privacy) {
		return nil, apperr.Validation("unknown privacy setting", map[string]string{"privacy": privacy})
	}

	now := time.Now().UTC()
	tree := &models.FamilyTree{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     userID,
		Privacy:     privacy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.trees.Create(ctx, tree); err != nil {
		return nil, err
	}

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "tree.created",
		TreeID:    tree.ID.String(),
		ActorID:   userID,
		SubjectID: tree.ID.String(),
	})

	return tree, nil
}

// GetTree returns a tree the caller may view
func (s *TreeService) GetTree(ctx context.Context, userID string, id uuid.UUID) (*models.FamilyTree, error) {
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tree.CanView(userID) {
		return nil, apperr.Forbidden("not a member of this tree")
	}
	return tree, nil
}

// ListTrees returns every tree the caller owns or collaborates on
func (s *TreeService) ListTrees(ctx context.Context, userID string) ([]*models.FamilyTree, error) {
	return s.trees.ListByUser(ctx, userID)
}

// UpdateTreeRequest patches mutable tree fields; nil means unchanged
type UpdateTreeRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Privacy     *string `json:"privacy"`
}

// UpdateTree patches name, description or privacy. Privacy changes require
// the admin role, the rest editor.
func (s *TreeService) UpdateTree(ctx context.Context, userID string, id uuid.UUID, patch *UpdateTreeRequest) (*models.FamilyTree, error) {
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing a tree requires the editor role")
	}
	if patch.Privacy != nil {
		if !tree.CanManage(userID) {
			return nil, apperr.Forbidden("changing tree privacy requires the admin role")
		}
		if !models.ValidTreePrivacy(*patch.Privacy) {
			return nil, apperr.Validation("unknown privacy setting", map[string]string{"privacy": *patch.Privacy})
		}
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.Validation("tree name is required", nil)
		}
		tree.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		tree.Description = *patch.Description
	}
	if patch.Privacy != nil {
		tree.Privacy = *patch.Privacy
	}

	if err := s.trees.Update(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// DeleteTree removes a tree and every person and relationship in it
func (s *TreeService) DeleteTree(ctx context.Context, userID string, id uuid.UUID) error {
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tree.OwnerID != userID {
		return apperr.Forbidden("only the owner may delete a tree")
	}

	rels, err := s.relationships.ListByTree(ctx, id)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := s.relationships.Delete(ctx, rel.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}
	}

	persons, err := s.persons.ListByTree(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range persons {
		if err := s.persons.Delete(ctx, p.ID); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}
	}

	if err := s.trees.Delete(ctx, id); err != nil {
		return err
	}

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "tree.deleted",
		TreeID:    id.String(),
		ActorID:   userID,
		SubjectID: id.String(),
	})

	return nil
}

// InviteCollaborator adds a pending invitation with the given role
func (s *TreeService) InviteCollaborator(ctx context.Context, userID string, treeID uuid.UUID, inviteeID string, role models.CollaboratorRole) (*models.FamilyTree, error) {
	switch role {
	case models.RoleViewer, models.RoleEditor, models.RoleAdmin:
	default:
		return nil, apperr.Validation("unknown collaborator role", map[string]string{"role": string(role)})
	}

	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanManage(userID) {
		return nil, apperr.Forbidden("inviting collaborators requires the admin role")
	}
	if inviteeID == tree.OwnerID {
		return nil, apperr.Conflict("the owner is already a member")
	}
	for _, c := range tree.Collaborators {
		if c.UserID == inviteeID {
			return nil, apperr.Conflict("user is already invited")
		}
	}

	tree.Collaborators = append(tree.Collaborators, models.Collaborator{
		UserID:    inviteeID,
		Role:      role,
		InvitedAt: time.Now().UTC(),
	})

	if err := s.trees.Update(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// AcceptInvitation marks the caller's pending invitation as accepted,
// activating their role
func (s *TreeService) AcceptInvitation(ctx context.Context, userID string, treeID uuid.UUID) (*models.FamilyTree, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}

	for i := range tree.Collaborators {
		if tree.Collaborators[i].UserID != userID {
			continue
		}
		if tree.Collaborators[i].AcceptedAt != nil {
			return nil, apperr.Conflict("invitation already accepted")
		}
		now := time.Now().UTC()
		tree.Collaborators[i].AcceptedAt = &now
		if err := s.trees.Update(ctx, tree); err != nil {
			return nil, err
		}
		return tree, nil
	}

	return nil, apperr.NotFound("invitation", userID)
}

// RemoveCollaborator drops a collaborator or withdraws a pending
// invitation. Collaborators may remove themselves; anyone else requires
// the admin role.
func (s *TreeService) RemoveCollaborator(ctx context.Context, userID string, treeID uuid.UUID, collaboratorID string) (*models.FamilyTree, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if userID != collaboratorID && !tree.CanManage(userID) {
		return nil, apperr.Forbidden("removing collaborators requires the admin role")
	}

	for i := range tree.Collaborators {
		if tree.Collaborators[i].UserID != collaboratorID {
			continue
		}
		tree.Collaborators = append(tree.Collaborators[:i], tree.Collaborators[i+1:]...)
		if err := s.trees.Update(ctx, tree); err != nil {
			return nil, err
		}
		return tree, nil
	}

	return nil, apperr.NotFound("collaborator", collaboratorID)
}
