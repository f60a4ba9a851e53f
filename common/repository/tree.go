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

// TreeRepository handles database operations for family trees
type TreeRepository struct {
	db *db.DB
}

// NewTreeRepository creates a new tree repository
func NewTreeRepository(db *db.DB) *TreeRepository {
	return &TreeRepository{db: db}
}

// Create inserts a new tree
func (r *TreeRepository) Create(ctx context.Context, tree *models.FamilyTree) error {
	doc, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}

	query := `
		INSERT INTO family_trees (tree_id, name, owner_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.Exec(ctx, query,
		tree.ID,
		tree.Name,
		tree.OwnerID,
		doc,
		tree.CreatedAt,
		tree.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tree: %w", err)
	}

	return nil
}

// GetByID retrieves a tree by id
func (r *TreeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FamilyTree, error) {
	query := `SELECT doc FROM family_trees WHERE tree_id = $1`

	var doc []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("tree", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	tree := &models.FamilyTree{}
	if err := json.Unmarshal(doc, tree); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}

	return tree, nil
}

// Update replaces the tree document
func (r *TreeRepository) Update(ctx context.Context, tree *models.FamilyTree) error {
	tree.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}

	query := `
		UPDATE family_trees
		SET name = $2, owner_id = $3, doc = $4, updated_at = $5
		WHERE tree_id = $1
	`

	tag, err := r.db.Exec(ctx, query, tree.ID, tree.Name, tree.OwnerID, doc, tree.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update tree: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tree", tree.ID.String())
	}

	return nil
}

// Delete removes a tree
func (r *TreeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM family_trees WHERE tree_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tree", id.String())
	}
	return nil
}

// ListByUser returns trees the user owns or collaborates on
func (r *TreeRepository) ListByUser(ctx context.Context, userID string) ([]*models.FamilyTree, error) {
	member, err := json.Marshal([]map[string]string{{"user_id": userID}})
	if err != nil {
		return nil, fmt.Errorf("marshal membership filter: %w", err)
	}

	query := `
		SELECT doc FROM family_trees
		WHERE owner_id = $1 OR doc->'collaborators' @> $2::jsonb
		ORDER BY tree_id
	`

	rows, err := r.db.Query(ctx, query, userID, member)
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	defer rows.Close()

	var trees []*models.FamilyTree
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		tree := &models.FamilyTree{}
		if err := json.Unmarshal(doc, tree); err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		trees = append(trees, tree)
	}

	return trees, rows.Err()
}
