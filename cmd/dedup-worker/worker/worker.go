// Package worker implements the asynchronous duplicate detector. It
// consumes person-created jobs, scores the new person against every other
// person in the same tree and files pending merge suggestions for strong
// matches.
package worker

import (
	"context"
	"encoding/json"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/match"
	"github.com/arborhq/lineage/common/merge"
	"github.com/arborhq/lineage/common/models"
	redisclient "github.com/arborhq/lineage/common/redis"
)

const processedMarkerTTL = 24 * time.Hour

// PersonStore is the subset of person persistence the worker reads
type PersonStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	ListByTree(ctx context.Context, treeID uuid.UUID) ([]*models.Person, error)
}

// RelationshipStore lists edges for preview subtrees
type RelationshipStore interface {
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Relationship, error)
}

// SuggestionStore files and deduplicates suggestions
type SuggestionStore interface {
	Create(ctx context.Context, suggestion *models.MergeSuggestion) error
	Exists(ctx context.Context, newPersonID, existingPersonID uuid.UUID) (bool, error)
}

// Job is the payload published on person creation
type Job struct {
	PersonID uuid.UUID `json:"person_id"`
	TreeID   uuid.UUID `json:"tree_id"`
}

// Worker scores one job at a time. Delivery is at-least-once, so every
// step tolerates reprocessing: a redis marker short-circuits the common
// case and the suggestion store's pair constraint absorbs the rest.
type Worker struct {
	persons       PersonStore
	relationships RelationshipStore
	suggestions   SuggestionStore
	redis         *redisclient.Client
	log           *logger.Logger
}

// New creates a new duplicate-detection worker. The redis client is
// optional; without it the store constraint alone provides idempotence.
func New(persons PersonStore, relationships RelationshipStore, suggestions SuggestionStore, redis *redisclient.Client, log *logger.Logger) *Worker {
	return &Worker{
		persons:       persons,
		relationships: relationships,
		suggestions:   suggestions,
		redis:         redis,
		log:           log,
	}
}

// Handle processes one queued job. The error return drives the queue's
// ack: nil acks, non-nil leaves the message for redelivery.
func (w *Worker) Handle(ctx context.Context, key string, value []byte) error {
	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		// A malformed payload never becomes valid, ack it away
		w.log.Error("dropping malformed job", "key", key, "error", err)
		return nil
	}

	if w.alreadyProcessed(ctx, job.PersonID) {
		return nil
	}

	person, err := w.persons.GetByID(ctx, job.PersonID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// Deleted between enqueue and processing
			w.log.Info("person gone before scoring", "person_id", job.PersonID)
			return nil
		}
		return err
	}

	candidates, err := w.persons.ListByTree(ctx, job.TreeID)
	if err != nil {
		return err
	}

	filed := 0
	for _, candidate := range candidates {
		if candidate.ID == person.ID {
			continue
		}
		score := match.Score(person, candidate)
		if score <= match.SuggestionThreshold {
			continue
		}

		exists, err := w.suggestions.Exists(ctx, person.ID, candidate.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		suggestion, err := w.buildSuggestion(ctx, person, candidate, score)
		if err != nil {
			return err
		}
		if err := w.suggestions.Create(ctx, suggestion); err != nil {
			return err
		}
		filed++
	}

	w.markProcessed(ctx, job.PersonID)
	w.log.Info("scored person for duplicates",
		"person_id", job.PersonID,
		"candidates", len(candidates)-1,
		"suggestions", filed)
	return nil
}

// buildSuggestion assembles the reviewer preview: the new person's
// immediate subtree plus a merge patch showing what accepting would
// change on the existing record
func (w *Worker) buildSuggestion(ctx context.Context, person, candidate *models.Person, score float64) (*models.MergeSuggestion, error) {
	preview := models.SuggestionPreview{
		NewPerson: summarize(person),
	}

	for _, parent := range person.LegalParents {
		if p, err := w.persons.GetByID(ctx, parent.PersonID); err == nil {
			preview.Parents = append(preview.Parents, summarize(p))
		}
	}
	for _, spouse := range person.Spouses {
		if p, err := w.persons.GetByID(ctx, spouse.PersonID); err == nil {
			preview.Spouses = append(preview.Spouses, summarize(p))
		}
	}

	edges, err := w.relationships.ListByPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	for _, rel := range edges {
		if rel.Type.IsParental() && rel.Person1ID == person.ID {
			if p, err := w.persons.GetByID(ctx, rel.Person2ID); err == nil {
				preview.Children = append(preview.Children, summarize(p))
			}
		}
	}

	patch, err := mergePatch(candidate, person)
	if err != nil {
		w.log.Warn("preview patch unavailable", "person_id", person.ID, "error", err)
	} else {
		preview.MergePatch = patch
	}

	return &models.MergeSuggestion{
		ID:               uuid.New(),
		FamilyTreeID:     person.FamilyTreeID,
		NewPersonID:      person.ID,
		ExistingPersonID: candidate.ID,
		Confidence:       score,
		Status:           models.SuggestionPending,
		Preview:          preview,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// mergePatch diffs the existing record against what the merge policy
// would produce
func mergePatch(existing, incoming *models.Person) (json.RawMessage, error) {
	before, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	after, err := json.Marshal(merge.Persons(existing, incoming))
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(before, after)
}

func summarize(p *models.Person) models.PersonSummary {
	return models.PersonSummary{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate,
		DeathDate: p.DeathDate,
	}
}

func (w *Worker) alreadyProcessed(ctx context.Context, personID uuid.UUID) bool {
	if w.redis == nil {
		return false
	}
	_, found, err := w.redis.Get(ctx, markerKey(personID))
	if err != nil {
		w.log.Warn("processed-marker check failed", "person_id", personID, "error", err)
		return false
	}
	return found
}

// markProcessed records completion after the fact. A crash before this
// point redelivers the job, which rescores idempotently.
func (w *Worker) markProcessed(ctx context.Context, personID uuid.UUID) {
	if w.redis == nil {
		return
	}
	if _, err := w.redis.SetNX(ctx, markerKey(personID), "1", processedMarkerTTL); err != nil {
		w.log.Warn("failed to set processed marker", "person_id", personID, "error", err)
	}
}

func markerKey(personID uuid.UUID) string {
	return "dedup:processed:" + personID.String()
}
