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

// SuggestionRepository handles database operations for merge suggestions
type SuggestionRepository struct {
	db *db.DB
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *db.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Create inserts a new suggestion. The (new_person_id, existing_person_id)
// unique constraint is the durable idempotence guard for the at-least-once
// detector; callers should check Exists first and treat constraint
// violations as already-created.
func (r *SuggestionRepository) Create(ctx context.Context, s *models.MergeSuggestion) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}

	query := `
		INSERT INTO merge_suggestions
			(suggestion_id, tree_id, new_person_id, existing_person_id, confidence, status, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (new_person_id, existing_person_id) DO NOTHING
	`

	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.FamilyTreeID,
		s.NewPersonID,
		s.ExistingPersonID,
		s.Confidence,
		s.Status,
		doc,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}

	return nil
}

// GetByID retrieves a suggestion by id
func (r *SuggestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MergeSuggestion, error) {
	query := `SELECT doc, status FROM merge_suggestions WHERE suggestion_id = $1`

	var doc []byte
	var status models.SuggestionStatus
	err := r.db.QueryRow(ctx, query, id).Scan(&doc, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("suggestion", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}

	s := &models.MergeSuggestion{}
	if err := json.Unmarshal(doc, s); err != nil {
		return nil, fmt.Errorf("unmarshal suggestion: %w", err)
	}
	// The status column is authoritative; the doc may lag one transition
	s.Status = status

	return s, nil
}

// Exists reports whether a suggestion already exists for the ordered
// person pair
func (r *SuggestionRepository) Exists(ctx context.Context, newPersonID, existingPersonID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM merge_suggestions
			WHERE new_person_id = $1 AND existing_person_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, newPersonID, existingPersonID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check suggestion: %w", err)
	}
	return exists, nil
}

// ListByTree returns suggestions for a tree with the given status,
// newest first
func (r *SuggestionRepository) ListByTree(ctx context.Context, treeID uuid.UUID, status models.SuggestionStatus) ([]*models.MergeSuggestion, error) {
	query := `
		SELECT doc, status FROM merge_suggestions
		WHERE tree_id = $1 AND status = $2
		ORDER BY created_at DESC, suggestion_id
	`

	rows, err := r.db.Query(ctx, query, treeID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []*models.MergeSuggestion
	for rows.Next() {
		var doc []byte
		var st models.SuggestionStatus
		if err := rows.Scan(&doc, &st); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		s := &models.MergeSuggestion{}
		if err := json.Unmarshal(doc, s); err != nil {
			return nil, fmt.Errorf("unmarshal suggestion: %w", err)
		}
		s.Status = st
		suggestions = append(suggestions, s)
	}

	return suggestions, rows.Err()
}

// ResolveIfPending transitions a pending suggestion to the given status.
// Returns false when the suggestion was not pending (CAS semantics, so a
// double accept turns into a Conflict at the service layer).
func (r *SuggestionRepository) ResolveIfPending(ctx context.Context, id uuid.UUID, status models.SuggestionStatus, resolvedBy string) (bool, error) {
	now := time.Now().UTC()

	query := `
		UPDATE merge_suggestions
		SET status = $2,
		    doc = doc || jsonb_build_object('status', $2::text, 'resolved_at', $3::text, 'resolved_by', $4::text)
		WHERE suggestion_id = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, id, status, now.Format(time.RFC3339Nano), resolvedBy)
	if err != nil {
		return false, fmt.Errorf("failed to resolve suggestion: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
