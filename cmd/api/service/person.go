package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
	"github.com/arborhq/lineage/common/queue"
)

// PersonService handles person CRUD, the history log and snapshot revert.
// Every successful create queues a duplicate-detection job.
type PersonService struct {
	persons PersonStore
	trees   TreeStore
	history HistoryStore
	graph   *GraphService
	queue   queue.Queue
	log     *logger.Logger
}

// NewPersonService creates a new person service
func NewPersonService(persons PersonStore, trees TreeStore, history HistoryStore, graph *GraphService, q queue.Queue, log *logger.Logger) *PersonService {
	return &PersonService{
		persons: persons,
		trees:   trees,
		history: history,
		graph:   graph,
		queue:   q,
		log:     log,
	}
}

// CreatePersonRequest is the input for creating a person
type CreatePersonRequest struct {
	FirstName          string                 `json:"first_name"`
	MiddleName         string                 `json:"middle_name,omitempty"`
	LastName           string                 `json:"last_name"`
	MaidenName         string                 `json:"maiden_name,omitempty"`
	Nickname           string                 `json:"nickname,omitempty"`
	Titles             []string               `json:"titles,omitempty"`
	Gender             models.Gender          `json:"gender,omitempty"`
	BirthDate          *time.Time             `json:"birth_date,omitempty"`
	BirthDateEstimated bool                   `json:"birth_date_estimated,omitempty"`
	BirthPlace         string                 `json:"birth_place,omitempty"`
	DeathDate          *time.Time             `json:"death_date,omitempty"`
	DeathDateEstimated bool                   `json:"death_date_estimated,omitempty"`
	DeathPlace         string                 `json:"death_place,omitempty"`
	Identifiers        []models.Identifier    `json:"identifiers,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	Privacy            models.PrivacySettings `json:"privacy,omitempty"`
}

// UpdatePersonRequest is a partial patch of mutable person fields.
// family_tree_id is immutable except via merge cascade; is_living is
// always derived and never accepted.
type UpdatePersonRequest struct {
	FamilyTreeID       *uuid.UUID              `json:"family_tree_id,omitempty"`
	IsLiving           *bool                   `json:"is_living,omitempty"`
	FirstName          *string                 `json:"first_name,omitempty"`
	MiddleName         *string                 `json:"middle_name,omitempty"`
	LastName           *string                 `json:"last_name,omitempty"`
	MaidenName         *string                 `json:"maiden_name,omitempty"`
	Nickname           *string                 `json:"nickname,omitempty"`
	Titles             []string                `json:"titles,omitempty"`
	Gender             *models.Gender          `json:"gender,omitempty"`
	BirthDate          *time.Time              `json:"birth_date,omitempty"`
	BirthDateEstimated *bool                   `json:"birth_date_estimated,omitempty"`
	BirthPlace         *string                 `json:"birth_place,omitempty"`
	DeathDate          *time.Time              `json:"death_date,omitempty"`
	DeathDateEstimated *bool                   `json:"death_date_estimated,omitempty"`
	DeathPlace         *string                 `json:"death_place,omitempty"`
	Identifiers        []models.Identifier     `json:"identifiers,omitempty"`
	Notes              *string                 `json:"notes,omitempty"`
	Privacy            *models.PrivacySettings `json:"privacy,omitempty"`
}

// CreatePerson creates a person in a tree and queues duplicate detection
func (s *PersonService) CreatePerson(ctx context.Context, userID string, treeID uuid.UUID, req *CreatePersonRequest) (*models.Person, error) {
	if req.FirstName == "" && req.LastName == "" {
		return nil, apperr.Validation("a person needs at least a first or last name", map[string]string{
			"first_name": "required when last_name is empty",
		})
	}

	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing this tree requires the editor role")
	}

	gender := req.Gender
	if gender == "" {
		gender = models.GenderUnknown
	}

	now := time.Now().UTC()
	person := &models.Person{
		ID:                 uuid.New(),
		FamilyTreeID:       tree.ID,
		FirstName:          req.FirstName,
		MiddleName:         req.MiddleName,
		LastName:           req.LastName,
		MaidenName:         req.MaidenName,
		Nickname:           req.Nickname,
		Titles:             req.Titles,
		Gender:             gender,
		BirthDate:          req.BirthDate,
		BirthDateEstimated: req.BirthDateEstimated,
		BirthPlace:         req.BirthPlace,
		DeathDate:          req.DeathDate,
		DeathDateEstimated: req.DeathDateEstimated,
		DeathPlace:         req.DeathPlace,
		Identifiers:        req.Identifiers,
		Notes:              req.Notes,
		Privacy:            req.Privacy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	person.RecomputeLiving()

	if err := s.persons.Create(ctx, person); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, person, models.ChangeCreate, userID)
	s.bumpPersonCount(ctx, tree, 1)
	s.queueDuplicateDetection(ctx, person)

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "person.created",
		TreeID:    tree.ID.String(),
		ActorID:   userID,
		SubjectID: person.ID.String(),
	})

	return person, nil
}

// GetPerson returns a person. Reads run the mirror detect-and-repair pass,
// so divergence left by a partial relationship write heals here.
func (s *PersonService) GetPerson(ctx context.Context, userID string, id uuid.UUID) (*models.Person, error) {
	person, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tree, err := s.trees.GetByID(ctx, person.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanView(userID) {
		return nil, apperr.Forbidden("viewing this tree requires access")
	}

	if _, err := s.graph.SyncPersonMirrors(ctx, person); err != nil {
		// Serving a slightly stale view beats failing the read
		s.log.Warn("mirror repair failed on read", "person_id", person.ID, "error", err)
	}

	return person, nil
}

// ListPersons returns every person in a tree the caller may view
func (s *PersonService) ListPersons(ctx context.Context, userID string, treeID uuid.UUID) ([]*models.Person, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanView(userID) {
		return nil, apperr.Forbidden("viewing this tree requires access")
	}
	return s.persons.ListByTree(ctx, treeID)
}

// UpdatePerson applies a partial patch and appends a history entry
func (s *PersonService) UpdatePerson(ctx context.Context, userID string, id uuid.UUID, patch *UpdatePersonRequest) (*models.Person, error) {
	if patch.FamilyTreeID != nil {
		return nil, apperr.Conflict("family_tree_id is immutable; persons move trees only through merges")
	}
	if patch.IsLiving != nil {
		return nil, apperr.Validation("is_living is derived from the death date and cannot be set", map[string]string{
			"is_living": "read-only",
		})
	}

	person, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tree, err := s.trees.GetByID(ctx, person.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing this tree requires the editor role")
	}

	applyPersonPatch(person, patch)
	person.RecomputeLiving()

	if err := s.persons.Update(ctx, person); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, person, models.ChangeUpdate, userID)

	return person, nil
}

// DeletePerson removes a person, cascading deletes of every relationship
// that touches them (which strips the mirrors on the other endpoints)
func (s *PersonService) DeletePerson(ctx context.Context, userID string, id uuid.UUID) error {
	person, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tree, err := s.trees.GetByID(ctx, person.FamilyTreeID)
	if err != nil {
		return err
	}
	if !tree.CanEdit(userID) {
		return apperr.Forbidden("editing this tree requires the editor role")
	}

	rels, err := s.graph.relationships.ListByPerson(ctx, id)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := s.graph.DeleteRelationship(ctx, userID, rel.ID); err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				continue
			}
			return err
		}
	}

	s.appendHistory(ctx, person, models.ChangeDelete, userID)

	if err := s.persons.Delete(ctx, id); err != nil {
		return err
	}

	s.bumpPersonCount(ctx, tree, -1)

	publishActivity(ctx, s.queue, s.log, ActivityEvent{
		Type:      "person.deleted",
		TreeID:    tree.ID.String(),
		ActorID:   userID,
		SubjectID: person.ID.String(),
	})

	return nil
}

// ListHistory returns a person's version history, newest first
func (s *PersonService) ListHistory(ctx context.Context, userID string, personID uuid.UUID) ([]*models.PersonHistory, error) {
	person, err := s.persons.GetByID(ctx, personID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.GetByID(ctx, person.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanView(userID) {
		return nil, apperr.Forbidden("viewing this tree requires access")
	}

	return s.history.ListByPerson(ctx, personID)
}

// RevertPerson restores a history snapshot by overwrite and appends a new
// "revert" entry. An audited forward action, not an undo.
func (s *PersonService) RevertPerson(ctx context.Context, userID string, personID uuid.UUID, version int) (*models.Person, error) {
	person, err := s.persons.GetByID(ctx, personID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.GetByID(ctx, person.FamilyTreeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("editing this tree requires the editor role")
	}

	entry, err := s.history.GetVersion(ctx, personID, version)
	if err != nil {
		return nil, err
	}

	restored := entry.Snapshot
	restored.ID = personID
	// Tree membership may have changed since the snapshot; it is immutable
	// outside merges, so the current tree wins
	restored.FamilyTreeID = person.FamilyTreeID
	restored.RecomputeLiving()

	if err := s.persons.Update(ctx, &restored); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &restored, models.ChangeRevert, userID)

	return &restored, nil
}

func (s *PersonService) appendHistory(ctx context.Context, person *models.Person, change models.ChangeType, userID string) {
	appendHistoryEntry(ctx, s.history, s.log, person, change, userID)
}

// queueDuplicateDetection publishes the async job that scores the new
// person against same-tree candidates
func (s *PersonService) queueDuplicateDetection(ctx context.Context, person *models.Person) {
	if s.queue == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"person_id": person.ID.String(),
		"tree_id":   person.FamilyTreeID.String(),
	})
	if err != nil {
		s.log.Error("marshal duplicate-detection job", "person_id", person.ID, "error", err)
		return
	}

	if err := s.queue.Publish(ctx, queue.TopicPersonCreated, person.ID.String(), payload); err != nil {
		s.log.Error("failed to queue duplicate detection", "person_id", person.ID, "error", err)
	}
}

func (s *PersonService) bumpPersonCount(ctx context.Context, tree *models.FamilyTree, delta int) {
	tree.Stats.PersonCount += delta
	if tree.Stats.PersonCount < 0 {
		tree.Stats.PersonCount = 0
	}
	if err := s.trees.Update(ctx, tree); err != nil {
		s.log.Warn("failed to update tree statistics", "tree_id", tree.ID, "error", err)
	}
}

func applyPersonPatch(person *models.Person, patch *UpdatePersonRequest) {
	if patch.FirstName != nil {
		person.FirstName = *patch.FirstName
	}
	if patch.MiddleName != nil {
		person.MiddleName = *patch.MiddleName
	}
	if patch.LastName != nil {
		person.LastName = *patch.LastName
	}
	if patch.MaidenName != nil {
		person.MaidenName = *patch.MaidenName
	}
	if patch.Nickname != nil {
		person.Nickname = *patch.Nickname
	}
	if patch.Titles != nil {
		person.Titles = patch.Titles
	}
	if patch.Gender != nil {
		person.Gender = *patch.Gender
	}
	if patch.BirthDate != nil {
		person.BirthDate = patch.BirthDate
	}
	if patch.BirthDateEstimated != nil {
		person.BirthDateEstimated = *patch.BirthDateEstimated
	}
	if patch.BirthPlace != nil {
		person.BirthPlace = *patch.BirthPlace
	}
	if patch.DeathDate != nil {
		person.DeathDate = patch.DeathDate
	}
	if patch.DeathDateEstimated != nil {
		person.DeathDateEstimated = *patch.DeathDateEstimated
	}
	if patch.DeathPlace != nil {
		person.DeathPlace = *patch.DeathPlace
	}
	if patch.Identifiers != nil {
		person.Identifiers = patch.Identifiers
	}
	if patch.Notes != nil {
		person.Notes = *patch.Notes
	}
	if patch.Privacy != nil {
		person.Privacy = *patch.Privacy
	}
}
