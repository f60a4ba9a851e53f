package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
)

type memPersonStore struct {
	mu      sync.Mutex
	persons map[uuid.UUID]*models.Person
}

func newMemPersonStore() *memPersonStore {
	return &memPersonStore{persons: map[uuid.UUID]*models.Person{}}
}

func (s *memPersonStore) add(p *models.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
}

func (s *memPersonStore) GetByID(_ context.Context, id uuid.UUID) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, apperr.NotFound("person", id.String())
	}
	return p, nil
}

func (s *memPersonStore) ListByTree(_ context.Context, treeID uuid.UUID) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Person
	for _, p := range s.persons {
		if p.FamilyTreeID == treeID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memRelationshipStore struct {
	rels []*models.Relationship
}

func (s *memRelationshipStore) ListByPerson(_ context.Context, personID uuid.UUID) ([]*models.Relationship, error) {
	var out []*models.Relationship
	for _, rel := range s.rels {
		if rel.Person1ID == personID || rel.Person2ID == personID {
			out = append(out, rel)
		}
	}
	return out, nil
}

type memSuggestionStore struct {
	mu          sync.Mutex
	suggestions []*models.MergeSuggestion
}

func (s *memSuggestionStore) Create(_ context.Context, suggestion *models.MergeSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.suggestions {
		if existing.NewPersonID == suggestion.NewPersonID && existing.ExistingPersonID == suggestion.ExistingPersonID {
			return nil
		}
	}
	s.suggestions = append(s.suggestions, suggestion)
	return nil
}

func (s *memSuggestionStore) Exists(_ context.Context, newPersonID, existingPersonID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.suggestions {
		if existing.NewPersonID == newPersonID && existing.ExistingPersonID == existingPersonID {
			return true, nil
		}
	}
	return false, nil
}

type workerEnv struct {
	persons       *memPersonStore
	relationships *memRelationshipStore
	suggestions   *memSuggestionStore
	worker        *Worker
	treeID        uuid.UUID
}

func newWorkerEnv() *workerEnv {
	env := &workerEnv{
		persons:       newMemPersonStore(),
		relationships: &memRelationshipStore{},
		suggestions:   &memSuggestionStore{},
		treeID:        uuid.New(),
	}
	env.worker = New(env.persons, env.relationships, env.suggestions, nil, logger.New("error", "json"))
	return env
}

func (env *workerEnv) seedPerson(first, last string, birth *time.Time) *models.Person {
	p := &models.Person{
		ID:           uuid.New(),
		FamilyTreeID: env.treeID,
		FirstName:    first,
		LastName:     last,
		BirthDate:    birth,
		Gender:       models.GenderUnknown,
		IsLiving:     true,
	}
	env.persons.add(p)
	return p
}

func jobPayload(t *testing.T, personID, treeID uuid.UUID) []byte {
	t.Helper()
	payload, err := json.Marshal(Job{PersonID: personID, TreeID: treeID})
	require.NoError(t, err)
	return payload
}

func TestHandleFilesSuggestionForStrongMatch(t *testing.T) {
	env := newWorkerEnv()
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	existing := env.seedPerson("John", "Doe", &birth)
	incoming := env.seedPerson("John", "Doe", &birth)

	err := env.worker.Handle(context.Background(), incoming.ID.String(), jobPayload(t, incoming.ID, env.treeID))
	require.NoError(t, err)

	require.Len(t, env.suggestions.suggestions, 1)
	s := env.suggestions.suggestions[0]
	assert.Equal(t, incoming.ID, s.NewPersonID)
	assert.Equal(t, existing.ID, s.ExistingPersonID)
	assert.Equal(t, env.treeID, s.FamilyTreeID)
	assert.Equal(t, models.SuggestionPending, s.Status)
	assert.Greater(t, s.Confidence, 0.7)
	assert.Equal(t, incoming.ID, s.Preview.NewPerson.ID)
	assert.Equal(t, "John", s.Preview.NewPerson.FirstName)
}

func TestHandleIgnoresWeakMatch(t *testing.T) {
	env := newWorkerEnv()
	env.seedPerson("Jane", "Smith", nil)
	incoming := env.seedPerson("John", "Doe", nil)

	err := env.worker.Handle(context.Background(), incoming.ID.String(), jobPayload(t, incoming.ID, env.treeID))
	require.NoError(t, err)

	assert.Empty(t, env.suggestions.suggestions)
}

func TestHandleBelowThresholdNotFiled(t *testing.T) {
	env := newWorkerEnv()
	// First name and birth date agree, surname does not: 0.6, under the
	// 0.7 threshold
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	env.seedPerson("John", "Smith", &birth)
	incoming := env.seedPerson("John", "Doe", &birth)

	err := env.worker.Handle(context.Background(), incoming.ID.String(), jobPayload(t, incoming.ID, env.treeID))
	require.NoError(t, err)

	assert.Empty(t, env.suggestions.suggestions)
}

func TestHandleSkipsOtherTrees(t *testing.T) {
	env := newWorkerEnv()
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	incoming := env.seedPerson("John", "Doe", &birth)

	twin := &models.Person{
		ID:           uuid.New(),
		FamilyTreeID: uuid.New(),
		FirstName:    "John",
		LastName:     "Doe",
		BirthDate:    &birth,
	}
	env.persons.add(twin)

	err := env.worker.Handle(context.Background(), incoming.ID.String(), jobPayload(t, incoming.ID, env.treeID))
	require.NoError(t, err)

	assert.Empty(t, env.suggestions.suggestions)
}

func TestHandleRedeliveryFilesOnce(t *testing.T) {
	env := newWorkerEnv()
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	env.seedPerson("John", "Doe", &birth)
	incoming := env.seedPerson("John", "Doe", &birth)

	payload := jobPayload(t, incoming.ID, env.treeID)
	require.NoError(t, env.worker.Handle(context.Background(), incoming.ID.String(), payload))
	require.NoError(t, env.worker.Handle(context.Background(), incoming.ID.String(), payload))

	assert.Len(t, env.suggestions.suggestions, 1)
}

func TestHandleAcksMalformedPayload(t *testing.T) {
	env := newWorkerEnv()
	err := env.worker.Handle(context.Background(), "bad", []byte("{not json"))
	assert.NoError(t, err)
	assert.Empty(t, env.suggestions.suggestions)
}

func TestHandleAcksDeletedPerson(t *testing.T) {
	env := newWorkerEnv()
	err := env.worker.Handle(context.Background(), "gone", jobPayload(t, uuid.New(), env.treeID))
	assert.NoError(t, err)
}

func TestBuildSuggestionPreviewSubtree(t *testing.T) {
	env := newWorkerEnv()
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	existing := env.seedPerson("John", "Doe", &birth)
	spouse := env.seedPerson("Jane", "Smith", nil)
	child := env.seedPerson("Junior", "Doe", nil)

	incoming := env.seedPerson("John", "Doe", &birth)
	relID := uuid.New()
	incoming.Spouses = []models.SpouseLink{{RelationshipID: relID, PersonID: spouse.ID}}
	env.relationships.rels = []*models.Relationship{
		{ID: relID, FamilyTreeID: env.treeID, Person1ID: incoming.ID, Person2ID: spouse.ID, Type: models.TypeSpousal},
		{ID: uuid.New(), FamilyTreeID: env.treeID, Person1ID: incoming.ID, Person2ID: child.ID, Type: models.TypeParentChild},
	}

	err := env.worker.Handle(context.Background(), incoming.ID.String(), jobPayload(t, incoming.ID, env.treeID))
	require.NoError(t, err)

	require.Len(t, env.suggestions.suggestions, 1)
	preview := env.suggestions.suggestions[0].Preview
	require.Len(t, preview.Spouses, 1)
	assert.Equal(t, spouse.ID, preview.Spouses[0].ID)
	require.Len(t, preview.Children, 1)
	assert.Equal(t, child.ID, preview.Children[0].ID)
	assert.NotEmpty(t, preview.MergePatch)

	_ = existing
}
