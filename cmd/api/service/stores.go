package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/models"
)

// PersonStore is the persistence surface the services need for persons.
// Implemented by repository.PersonRepository.
type PersonStore interface {
	Create(ctx context.Context, person *models.Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTree(ctx context.Context, treeID uuid.UUID) ([]*models.Person, error)
	ReassignTree(ctx context.Context, fromTree, toTree uuid.UUID) error
}

// RelationshipStore is the persistence surface for relationship edges.
// Implemented by repository.RelationshipRepository.
type RelationshipStore interface {
	Create(ctx context.Context, rel *models.Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	Update(ctx context.Context, rel *models.Relationship) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTree(ctx context.Context, treeID uuid.UUID) ([]*models.Relationship, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Relationship, error)
	ExistsPair(ctx context.Context, treeID, person1ID, person2ID uuid.UUID, relType models.RelationshipType) (bool, error)
	ExistsParentRole(ctx context.Context, childID uuid.UUID, role models.ParentalRole) (bool, error)
}

// TreeStore is the persistence surface for family trees.
// Implemented by repository.TreeRepository.
type TreeStore interface {
	Create(ctx context.Context, tree *models.FamilyTree) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FamilyTree, error)
	Update(ctx context.Context, tree *models.FamilyTree) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID string) ([]*models.FamilyTree, error)
}

// SuggestionStore is the persistence surface for merge suggestions.
// Implemented by repository.SuggestionRepository.
type SuggestionStore interface {
	Create(ctx context.Context, s *models.MergeSuggestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MergeSuggestion, error)
	Exists(ctx context.Context, newPersonID, existingPersonID uuid.UUID) (bool, error)
	ListByTree(ctx context.Context, treeID uuid.UUID, status models.SuggestionStatus) ([]*models.MergeSuggestion, error)
	ResolveIfPending(ctx context.Context, id uuid.UUID, status models.SuggestionStatus, resolvedBy string) (bool, error)
}

// HistoryStore is the persistence surface for the person history log.
// Implemented by repository.HistoryRepository.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.PersonHistory) error
	NextVersion(ctx context.Context, personID uuid.UUID) (int, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.PersonHistory, error)
	GetVersion(ctx context.Context, personID uuid.UUID, version int) (*models.PersonHistory, error)
}
