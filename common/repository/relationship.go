package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/db"
	"github.com/arborhq/lineage/common/models"
)

// RelationshipRepository handles database operations for relationship edges
type RelationshipRepository struct {
	db *db.DB
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *db.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// Create inserts a new relationship
func (r *RelationshipRepository) Create(ctx context.Context, rel *models.Relationship) error {
	doc, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}

	query := `
		INSERT INTO relationships
			(relationship_id, tree_id, person1_id, person2_id, rel_type, parental_role, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Exec(ctx, query,
		rel.ID,
		rel.FamilyTreeID,
		rel.Person1ID,
		rel.Person2ID,
		rel.Type,
		rel.ParentalRole,
		doc,
		rel.CreatedAt,
		rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}

	return nil
}

// GetByID retrieves a relationship by id
func (r *RelationshipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	query := `SELECT doc FROM relationships WHERE relationship_id = $1`

	var doc []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("relationship", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}

	rel := &models.Relationship{}
	if err := json.Unmarshal(doc, rel); err != nil {
		return nil, fmt.Errorf("unmarshal relationship: %w", err)
	}

	return rel, nil
}

// Update replaces the relationship document
func (r *RelationshipRepository) Update(ctx context.Context, rel *models.Relationship) error {
	rel.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}

	query := `
		UPDATE relationships
		SET tree_id = $2, person1_id = $3, person2_id = $4, rel_type = $5,
		    parental_role = $6, doc = $7, updated_at = $8
		WHERE relationship_id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		rel.ID,
		rel.FamilyTreeID,
		rel.Person1ID,
		rel.Person2ID,
		rel.Type,
		rel.ParentalRole,
		doc,
		rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("relationship", rel.ID.String())
	}

	return nil
}

// Delete removes a relationship
func (r *RelationshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM relationships WHERE relationship_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("relationship", id.String())
	}
	return nil
}

// ListByTree returns every relationship in a tree, ordered by id for
// deterministic export
func (r *RelationshipRepository) ListByTree(ctx context.Context, treeID uuid.UUID) ([]*models.Relationship, error) {
	query := `SELECT doc FROM relationships WHERE tree_id = $1 ORDER BY relationship_id`
	return r.queryMany(ctx, query, treeID)
}

// ListByPerson returns every relationship with the person at either endpoint
func (r *RelationshipRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Relationship, error) {
	query := `
		SELECT doc FROM relationships
		WHERE person1_id = $1 OR person2_id = $1
		ORDER BY relationship_id
	`
	return r.queryMany(ctx, query, personID)
}

// ExistsPair reports whether an edge of the given type already exists for
// the ordered pair in the tree
func (r *RelationshipRepository) ExistsPair(ctx context.Context, treeID, person1ID, person2ID uuid.UUID, relType models.RelationshipType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE tree_id = $1 AND person1_id = $2 AND person2_id = $3 AND rel_type = $4
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, treeID, person1ID, person2ID, relType).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pair: %w", err)
	}
	return exists, nil
}

// ExistsParentRole reports whether the child already has a parent-child
// edge with the given biological role
func (r *RelationshipRepository) ExistsParentRole(ctx context.Context, childID uuid.UUID, role models.ParentalRole) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE person2_id = $1 AND rel_type = $2 AND parental_role = $3
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, childID, models.TypeParentChild, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check parent role: %w", err)
	}
	return exists, nil
}

func (r *RelationshipRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Relationship, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var rels []*models.Relationship
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rel := &models.Relationship{}
		if err := json.Unmarshal(doc, rel); err != nil {
			return nil, fmt.Errorf("unmarshal relationship: %w", err)
		}
		rels = append(rels, rel)
	}

	return rels, rows.Err()
}
