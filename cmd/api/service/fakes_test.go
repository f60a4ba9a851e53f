package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
)

// In-memory store fakes mirroring repository semantics: values are copied
// on the way in and out, lookups miss with KindNotFound.

func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

type fakePersonStore struct {
	mu      sync.Mutex
	persons map[uuid.UUID]*models.Person
}

func newFakePersonStore() *fakePersonStore {
	return &fakePersonStore{persons: map[uuid.UUID]*models.Person{}}
}

func (f *fakePersonStore) Create(_ context.Context, p *models.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[p.ID]; ok {
		return apperr.Conflict("person already exists")
	}
	f.persons[p.ID] = clone(p)
	return nil
}

func (f *fakePersonStore) GetByID(_ context.Context, id uuid.UUID) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.persons[id]
	if !ok {
		return nil, apperr.NotFound("person", id.String())
	}
	return clone(p), nil
}

func (f *fakePersonStore) Update(_ context.Context, p *models.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[p.ID]; !ok {
		return apperr.NotFound("person", p.ID.String())
	}
	f.persons[p.ID] = clone(p)
	return nil
}

func (f *fakePersonStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[id]; !ok {
		return apperr.NotFound("person", id.String())
	}
	delete(f.persons, id)
	return nil
}

func (f *fakePersonStore) ListByTree(_ context.Context, treeID uuid.UUID) ([]*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Person
	for _, p := range f.persons {
		if p.FamilyTreeID == treeID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakePersonStore) ReassignTree(_ context.Context, fromTree, toTree uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.persons {
		if p.FamilyTreeID == fromTree {
			p.FamilyTreeID = toTree
		}
	}
	return nil
}

type fakeRelationshipStore struct {
	mu   sync.Mutex
	rels map[uuid.UUID]*models.Relationship
}

func newFakeRelationshipStore() *fakeRelationshipStore {
	return &fakeRelationshipStore{rels: map[uuid.UUID]*models.Relationship{}}
}

func (f *fakeRelationshipStore) Create(_ context.Context, rel *models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rels[rel.ID]; ok {
		return apperr.Conflict("relationship already exists")
	}
	f.rels[rel.ID] = clone(rel)
	return nil
}

func (f *fakeRelationshipStore) GetByID(_ context.Context, id uuid.UUID) (*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.rels[id]
	if !ok {
		return nil, apperr.NotFound("relationship", id.String())
	}
	return clone(rel), nil
}

func (f *fakeRelationshipStore) Update(_ context.Context, rel *models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rels[rel.ID]; !ok {
		return apperr.NotFound("relationship", rel.ID.String())
	}
	f.rels[rel.ID] = clone(rel)
	return nil
}

func (f *fakeRelationshipStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rels[id]; !ok {
		return apperr.NotFound("relationship", id.String())
	}
	delete(f.rels, id)
	return nil
}

func (f *fakeRelationshipStore) ListByTree(_ context.Context, treeID uuid.UUID) ([]*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Relationship
	for _, rel := range f.rels {
		if rel.FamilyTreeID == treeID {
			out = append(out, clone(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeRelationshipStore) ListByPerson(_ context.Context, personID uuid.UUID) ([]*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Relationship
	for _, rel := range f.rels {
		if rel.Person1ID == personID || rel.Person2ID == personID {
			out = append(out, clone(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeRelationshipStore) ExistsPair(_ context.Context, treeID, person1ID, person2ID uuid.UUID, relType models.RelationshipType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.rels {
		if rel.FamilyTreeID == treeID && rel.Person1ID == person1ID && rel.Person2ID == person2ID && rel.Type == relType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelationshipStore) ExistsParentRole(_ context.Context, childID uuid.UUID, role models.ParentalRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.rels {
		if rel.Type == models.TypeParentChild && rel.Person2ID == childID && rel.ParentalRole != nil && *rel.ParentalRole == role {
			return true, nil
		}
	}
	return false, nil
}

type fakeTreeStore struct {
	mu    sync.Mutex
	trees map[uuid.UUID]*models.FamilyTree
}

func newFakeTreeStore() *fakeTreeStore {
	return &fakeTreeStore{trees: map[uuid.UUID]*models.FamilyTree{}}
}

func (f *fakeTreeStore) Create(_ context.Context, tree *models.FamilyTree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trees[tree.ID]; ok {
		return apperr.Conflict("tree already exists")
	}
	f.trees[tree.ID] = clone(tree)
	return nil
}

func (f *fakeTreeStore) GetByID(_ context.Context, id uuid.UUID) (*models.FamilyTree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree, ok := f.trees[id]
	if !ok {
		return nil, apperr.NotFound("tree", id.String())
	}
	return clone(tree), nil
}

func (f *fakeTreeStore) Update(_ context.Context, tree *models.FamilyTree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trees[tree.ID]; !ok {
		return apperr.NotFound("tree", tree.ID.String())
	}
	f.trees[tree.ID] = clone(tree)
	return nil
}

func (f *fakeTreeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trees[id]; !ok {
		return apperr.NotFound("tree", id.String())
	}
	delete(f.trees, id)
	return nil
}

func (f *fakeTreeStore) ListByUser(_ context.Context, userID string) ([]*models.FamilyTree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FamilyTree
	for _, tree := range f.trees {
		if tree.OwnerID == userID {
			out = append(out, clone(tree))
			continue
		}
		for _, c := range tree.Collaborators {
			if c.UserID == userID {
				out = append(out, clone(tree))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type fakeSuggestionStore struct {
	mu          sync.Mutex
	suggestions map[uuid.UUID]*models.MergeSuggestion
}

func newFakeSuggestionStore() *fakeSuggestionStore {
	return &fakeSuggestionStore{suggestions: map[uuid.UUID]*models.MergeSuggestion{}}
}

func (f *fakeSuggestionStore) Create(_ context.Context, s *models.MergeSuggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.suggestions {
		if existing.NewPersonID == s.NewPersonID && existing.ExistingPersonID == s.ExistingPersonID {
			// Pair constraint: silently keep the first, like ON CONFLICT DO NOTHING
			return nil
		}
	}
	f.suggestions[s.ID] = clone(s)
	return nil
}

func (f *fakeSuggestionStore) GetByID(_ context.Context, id uuid.UUID) (*models.MergeSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.suggestions[id]
	if !ok {
		return nil, apperr.NotFound("suggestion", id.String())
	}
	return clone(s), nil
}

func (f *fakeSuggestionStore) Exists(_ context.Context, newPersonID, existingPersonID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.suggestions {
		if s.NewPersonID == newPersonID && s.ExistingPersonID == existingPersonID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSuggestionStore) ListByTree(_ context.Context, treeID uuid.UUID, status models.SuggestionStatus) ([]*models.MergeSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MergeSuggestion
	for _, s := range f.suggestions {
		if s.FamilyTreeID == treeID && s.Status == status {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeSuggestionStore) ResolveIfPending(_ context.Context, id uuid.UUID, status models.SuggestionStatus, resolvedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.suggestions[id]
	if !ok || s.Status != models.SuggestionPending {
		return false, nil
	}
	s.Status = status
	s.ResolvedBy = resolvedBy
	return true, nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	entries []*models.PersonHistory
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{}
}

func (f *fakeHistoryStore) Append(_ context.Context, entry *models.PersonHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PersonID == entry.PersonID && e.Version == entry.Version {
			return nil
		}
	}
	f.entries = append(f.entries, clone(entry))
	return nil
}

func (f *fakeHistoryStore) NextVersion(_ context.Context, personID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, e := range f.entries {
		if e.PersonID == personID && e.Version > max {
			max = e.Version
		}
	}
	return max + 1, nil
}

func (f *fakeHistoryStore) ListByPerson(_ context.Context, personID uuid.UUID) ([]*models.PersonHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PersonHistory
	for _, e := range f.entries {
		if e.PersonID == personID {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f *fakeHistoryStore) GetVersion(_ context.Context, personID uuid.UUID, version int) (*models.PersonHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PersonID == personID && e.Version == version {
			return clone(e), nil
		}
	}
	return nil, apperr.NotFound("history version", personID.String())
}

// testEnv wires every service over the in-memory fakes
type testEnv struct {
	persons       *fakePersonStore
	relationships *fakeRelationshipStore
	trees         *fakeTreeStore
	suggestions   *fakeSuggestionStore
	history       *fakeHistoryStore

	graph         *GraphService
	personService *PersonService
	treeService   *TreeService
	mergeService  *MergeService
	importService *ImportService
	exportService *ExportService
}

func newTestEnv() *testEnv {
	log := logger.New("error", "json")

	env := &testEnv{
		persons:       newFakePersonStore(),
		relationships: newFakeRelationshipStore(),
		trees:         newFakeTreeStore(),
		suggestions:   newFakeSuggestionStore(),
		history:       newFakeHistoryStore(),
	}
	env.graph = NewGraphService(env.persons, env.relationships, env.trees, nil, log)
	env.personService = NewPersonService(env.persons, env.trees, env.history, env.graph, nil, log)
	env.treeService = NewTreeService(env.trees, env.persons, env.relationships, nil, log)
	env.mergeService = NewMergeService(env.persons, env.relationships, env.trees, env.suggestions, env.history, nil, log)
	env.importService = NewImportService(env.personService, env.graph, env.trees, log)
	env.exportService = NewExportService(env.trees, env.persons, env.relationships, log)
	return env
}

// seedTree creates a tree owned by owner and returns it
func (env *testEnv) seedTree(owner string) *models.FamilyTree {
	tree := &models.FamilyTree{
		ID:      uuid.New(),
		Name:    "Test Tree",
		OwnerID: owner,
	}
	if err := env.trees.Create(context.Background(), tree); err != nil {
		panic(err)
	}
	return tree
}

// seedPerson creates a bare person directly in the store
func (env *testEnv) seedPerson(treeID uuid.UUID, first, last string) *models.Person {
	p := &models.Person{
		ID:           uuid.New(),
		FamilyTreeID: treeID,
		FirstName:    first,
		LastName:     last,
		Gender:       models.GenderUnknown,
		IsLiving:     true,
	}
	if err := env.persons.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}
