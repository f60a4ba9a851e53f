package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/models"
)

func ptrNow() *time.Time {
	now := time.Now().UTC()
	return &now
}

func TestCreateSpousalRelationshipMirrorsBothSides(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSpousal,
		Status:    spousalStatusPtr(models.StatusMarried),
	})
	require.NoError(t, err)

	gotA, err := env.persons.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := env.persons.GetByID(ctx, b.ID)
	require.NoError(t, err)

	require.Len(t, gotA.Spouses, 1)
	assert.Equal(t, b.ID, gotA.Spouses[0].PersonID)
	assert.Equal(t, rel.ID, gotA.Spouses[0].RelationshipID)
	assert.Equal(t, models.StatusMarried, gotA.Spouses[0].Status)

	require.Len(t, gotB.Spouses, 1)
	assert.Equal(t, a.ID, gotB.Spouses[0].PersonID)
	assert.Equal(t, rel.ID, gotB.Spouses[0].RelationshipID)
}

func TestCreateRelationshipRejectsSelfEdge(t *testing.T) {
	env := newTestEnv()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")

	_, err := env.graph.CreateRelationship(context.Background(), "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: a.ID,
		Type:      models.TypeSibling,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateSiblingDuplicatePairConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "James", "Doe")

	req := &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeHalfSibling,
	}
	_, err := env.graph.CreateRelationship(ctx, "alice", req)
	require.NoError(t, err)

	_, err = env.graph.CreateRelationship(ctx, "alice", req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestCreateParentChildSetsChildPointers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	mother := env.seedPerson(tree.ID, "Jane", "Doe")
	child := env.seedPerson(tree.ID, "Junior", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID:    mother.ID,
		Person2ID:    child.ID,
		Type:         models.TypeParentChild,
		ParentalRole: parentalRolePtr(models.RoleMother),
	})
	require.NoError(t, err)

	gotChild, err := env.persons.GetByID(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, gotChild.BiologicalMother)
	assert.Equal(t, mother.ID, gotChild.BiologicalMother.PersonID)
	assert.Equal(t, rel.ID, gotChild.BiologicalMother.RelationshipID)
	require.Len(t, gotChild.LegalParents, 1)
	assert.Equal(t, models.RoleMother, gotChild.LegalParents[0].Role)

	// Parental mirrors live on the child only
	gotMother, err := env.persons.GetByID(ctx, mother.ID)
	require.NoError(t, err)
	assert.Empty(t, gotMother.LegalParents)
	assert.Nil(t, gotMother.BiologicalMother)
}

func TestSecondBiologicalMotherConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	mother := env.seedPerson(tree.ID, "Jane", "Doe")
	other := env.seedPerson(tree.ID, "Janet", "Roe")
	child := env.seedPerson(tree.ID, "Junior", "Doe")

	_, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID:    mother.ID,
		Person2ID:    child.ID,
		Type:         models.TypeParentChild,
		ParentalRole: parentalRolePtr(models.RoleMother),
	})
	require.NoError(t, err)

	_, err = env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID:    other.ID,
		Person2ID:    child.ID,
		Type:         models.TypeParentChild,
		ParentalRole: parentalRolePtr(models.RoleMother),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestParentChildRequiresRole(t *testing.T) {
	env := newTestEnv()
	tree := env.seedTree("alice")
	parent := env.seedPerson(tree.ID, "Jane", "Doe")
	child := env.seedPerson(tree.ID, "Junior", "Doe")

	_, err := env.graph.CreateRelationship(context.Background(), "alice", &CreateRelationshipRequest{
		Person1ID: parent.ID,
		Person2ID: child.ID,
		Type:      models.TypeParentChild,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSpousalRequiresStatus(t *testing.T) {
	env := newTestEnv()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	_, err := env.graph.CreateRelationship(context.Background(), "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSpousal,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateRelationshipCrossTreeRejected(t *testing.T) {
	env := newTestEnv()
	tree1 := env.seedTree("alice")
	tree2 := env.seedTree("alice")
	a := env.seedPerson(tree1.ID, "John", "Doe")
	b := env.seedPerson(tree2.ID, "Jane", "Doe")

	_, err := env.graph.CreateRelationship(context.Background(), "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSibling,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestViewerCannotCreateRelationship(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	tree.Collaborators = []models.Collaborator{{UserID: "bob", Role: models.RoleViewer, AcceptedAt: ptrNow()}}
	require.NoError(t, env.trees.Update(ctx, tree))
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	_, err := env.graph.CreateRelationship(ctx, "bob", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSibling,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestDeleteRelationshipStripsMirrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	mother := env.seedPerson(tree.ID, "Jane", "Doe")
	child := env.seedPerson(tree.ID, "Junior", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID:    mother.ID,
		Person2ID:    child.ID,
		Type:         models.TypeParentChild,
		ParentalRole: parentalRolePtr(models.RoleMother),
	})
	require.NoError(t, err)

	require.NoError(t, env.graph.DeleteRelationship(ctx, "alice", rel.ID))

	gotChild, err := env.persons.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, gotChild.BiologicalMother)
	assert.Empty(t, gotChild.LegalParents)

	_, err = env.relationships.GetByID(ctx, rel.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdateSpousalStatusResyncsMirrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSpousal,
		Status:    spousalStatusPtr(models.StatusMarried),
	})
	require.NoError(t, err)

	_, err = env.graph.UpdateRelationship(ctx, "alice", rel.ID, &UpdateRelationshipRequest{
		Status: spousalStatusPtr(models.StatusDivorced),
	})
	require.NoError(t, err)

	gotA, err := env.persons.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := env.persons.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, gotA.Spouses, 1)
	require.Len(t, gotB.Spouses, 1)
	assert.Equal(t, models.StatusDivorced, gotA.Spouses[0].Status)
	assert.Equal(t, models.StatusDivorced, gotB.Spouses[0].Status)
}

func TestUpdateRelationshipRejectsEndpointChange(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "James", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSibling,
	})
	require.NoError(t, err)

	newID := env.seedPerson(tree.ID, "Jake", "Doe").ID
	_, err = env.graph.UpdateRelationship(ctx, "alice", rel.ID, &UpdateRelationshipRequest{
		Person1ID: &newID,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSyncPersonMirrorsDropsOrphanedEntries(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")

	// Inject a stale spouse link whose edge does not exist
	stored, err := env.persons.GetByID(ctx, a.ID)
	require.NoError(t, err)
	stored.Spouses = []models.SpouseLink{{
		PersonID:       env.seedPerson(tree.ID, "Ghost", "Doe").ID,
		RelationshipID: uuid.New(),
		Status:         models.StatusMarried,
	}}
	require.NoError(t, env.persons.Update(ctx, stored))

	changed, err := env.graph.SyncPersonMirrors(ctx, stored)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, stored.Spouses)

	persisted, err := env.persons.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted.Spouses)
}

func TestSyncPersonMirrorsInsertsMissingEntries(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSpousal,
		Status:    spousalStatusPtr(models.StatusMarried),
	})
	require.NoError(t, err)

	// Simulate a lost mirror write
	stored, err := env.persons.GetByID(ctx, a.ID)
	require.NoError(t, err)
	stored.Spouses = nil
	require.NoError(t, env.persons.Update(ctx, stored))

	changed, err := env.graph.SyncPersonMirrors(ctx, stored)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, stored.Spouses, 1)
	assert.Equal(t, rel.ID, stored.Spouses[0].RelationshipID)
}
