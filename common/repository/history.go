package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/db"
	"github.com/arborhq/lineage/common/models"
)

// HistoryRepository handles the append-only person history log
type HistoryRepository struct {
	db *db.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *db.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts a history entry. The (person_id, version) unique
// constraint keeps concurrent appenders from writing the same version
// twice; ON CONFLICT DO NOTHING makes retried merges idempotent.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.PersonHistory) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO person_history (history_id, person_id, version, change_type, snapshot, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (person_id, version) DO NOTHING
	`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.PersonID,
		entry.Version,
		entry.ChangeType,
		snapshot,
		entry.ChangedBy,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// NextVersion returns the next version number for a person
func (r *HistoryRepository) NextVersion(ctx context.Context, personID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM person_history WHERE person_id = $1`

	var version int
	if err := r.db.QueryRow(ctx, query, personID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get next version: %w", err)
	}
	return version, nil
}

// ListByPerson returns a person's history, newest first
func (r *HistoryRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.PersonHistory, error) {
	query := `
		SELECT history_id, person_id, version, change_type, snapshot, changed_by, created_at
		FROM person_history
		WHERE person_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PersonHistory
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetVersion retrieves one history entry by person and version
func (r *HistoryRepository) GetVersion(ctx context.Context, personID uuid.UUID, version int) (*models.PersonHistory, error) {
	query := `
		SELECT history_id, person_id, version, change_type, snapshot, changed_by, created_at
		FROM person_history
		WHERE person_id = $1 AND version = $2
	`

	row := r.db.QueryRow(ctx, query, personID, version)
	entry, err := scanHistoryRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("history version", fmt.Sprintf("%s@%d", personID, version))
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*models.PersonHistory, error) {
	return scanHistoryRow(row)
}

func scanHistoryRow(row rowScanner) (*models.PersonHistory, error) {
	entry := &models.PersonHistory{}
	var snapshot []byte

	err := row.Scan(
		&entry.ID,
		&entry.PersonID,
		&entry.Version,
		&entry.ChangeType,
		&snapshot,
		&entry.ChangedBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return entry, nil
}
