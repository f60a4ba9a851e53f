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

// PersonRepository handles database operations for persons.
// The whole person is stored as one JSONB document; writes replace the
// document in a single statement, which is the only atomicity the data
// model promises.
type PersonRepository struct {
	db *db.DB
}

// NewPersonRepository creates a new person repository
func NewPersonRepository(db *db.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// Create inserts a new person
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	doc, err := json.Marshal(person)
	if err != nil {
		return fmt.Errorf("marshal person: %w", err)
	}

	query := `
		INSERT INTO persons (person_id, tree_id, first_name, last_name, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Exec(ctx, query,
		person.ID,
		person.FamilyTreeID,
		person.FirstName,
		person.LastName,
		doc,
		person.CreatedAt,
		person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	return nil
}

// GetByID retrieves a person by id
func (r *PersonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	query := `SELECT doc FROM persons WHERE person_id = $1`

	var doc []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("person", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	person := &models.Person{}
	if err := json.Unmarshal(doc, person); err != nil {
		return nil, fmt.Errorf("unmarshal person: %w", err)
	}

	return person, nil
}

// Update replaces the person document
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(person)
	if err != nil {
		return fmt.Errorf("marshal person: %w", err)
	}

	query := `
		UPDATE persons
		SET tree_id = $2, first_name = $3, last_name = $4, doc = $5, updated_at = $6
		WHERE person_id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		person.ID,
		person.FamilyTreeID,
		person.FirstName,
		person.LastName,
		doc,
		person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("person", person.ID.String())
	}

	return nil
}

// Delete removes a person
func (r *PersonRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM persons WHERE person_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("person", id.String())
	}
	return nil
}

// ListByTree returns every person in a tree, ordered by id so callers that
// need deterministic output (the GEDCOM exporter) get it for free
func (r *PersonRepository) ListByTree(ctx context.Context, treeID uuid.UUID) ([]*models.Person, error) {
	query := `SELECT doc FROM persons WHERE tree_id = $1 ORDER BY person_id`

	rows, err := r.db.Query(ctx, query, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		person := &models.Person{}
		if err := json.Unmarshal(doc, person); err != nil {
			return nil, fmt.Errorf("unmarshal person: %w", err)
		}
		persons = append(persons, person)
	}

	return persons, rows.Err()
}

// ReassignTree moves every person from one tree to another. Used by the
// cross-tree merge cascade.
func (r *PersonRepository) ReassignTree(ctx context.Context, fromTree, toTree uuid.UUID) error {
	query := `
		UPDATE persons
		SET tree_id = $2,
		    doc = jsonb_set(doc, '{family_tree_id}', to_jsonb($2::text)),
		    updated_at = NOW()
		WHERE tree_id = $1
	`

	if _, err := r.db.Exec(ctx, query, fromTree, toTree); err != nil {
		return fmt.Errorf("failed to reassign persons: %w", err)
	}
	return nil
}
