package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/models"
)

func TestCreateTreeRequiresName(t *testing.T) {
	env := newTestEnv()

	_, err := env.treeService.CreateTree(context.Background(), "alice", &CreateTreeRequest{Name: "  "})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCollaboratorLifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tree, err := env.treeService.CreateTree(ctx, "alice", &CreateTreeRequest{Name: "Doe Family"})
	require.NoError(t, err)

	// Invite requires admin; a stranger cannot invite
	_, err = env.treeService.InviteCollaborator(ctx, "mallory", tree.ID, "bob", models.RoleEditor)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = env.treeService.InviteCollaborator(ctx, "alice", tree.ID, "bob", models.RoleEditor)
	require.NoError(t, err)

	// The invitation grants nothing until accepted
	got, err := env.trees.GetByID(ctx, tree.ID)
	require.NoError(t, err)
	assert.False(t, got.CanEdit("bob"))

	_, err = env.treeService.AcceptInvitation(ctx, "bob", tree.ID)
	require.NoError(t, err)

	got, err = env.trees.GetByID(ctx, tree.ID)
	require.NoError(t, err)
	assert.True(t, got.CanEdit("bob"))
	assert.False(t, got.CanManage("bob"))

	// Double accept conflicts
	_, err = env.treeService.AcceptInvitation(ctx, "bob", tree.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Collaborators may remove themselves
	_, err = env.treeService.RemoveCollaborator(ctx, "bob", tree.ID, "bob")
	require.NoError(t, err)

	got, err = env.trees.GetByID(ctx, tree.ID)
	require.NoError(t, err)
	assert.False(t, got.CanView("bob"))
}

func TestInviteDuplicateConflicts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")

	_, err := env.treeService.InviteCollaborator(ctx, "alice", tree.ID, "bob", models.RoleViewer)
	require.NoError(t, err)

	_, err = env.treeService.InviteCollaborator(ctx, "alice", tree.ID, "bob", models.RoleEditor)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = env.treeService.InviteCollaborator(ctx, "alice", tree.ID, "alice", models.RoleAdmin)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestTreePrivacyChangeRequiresAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")

	_, err := env.treeService.InviteCollaborator(ctx, "alice", tree.ID, "bob", models.RoleEditor)
	require.NoError(t, err)
	_, err = env.treeService.AcceptInvitation(ctx, "bob", tree.ID)
	require.NoError(t, err)

	public := models.TreePrivacyPublic
	_, err = env.treeService.UpdateTree(ctx, "bob", tree.ID, &UpdateTreeRequest{Privacy: &public})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	updated, err := env.treeService.UpdateTree(ctx, "alice", tree.ID, &UpdateTreeRequest{Privacy: &public})
	require.NoError(t, err)
	assert.Equal(t, models.TreePrivacyPublic, updated.Privacy)

	// A public tree is viewable by anyone, including anonymous callers
	got, err := env.treeService.GetTree(ctx, "stranger", tree.ID)
	require.NoError(t, err)
	assert.True(t, got.CanView(""))
}

func TestDeleteTreeRemovesRecords(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tree := env.seedTree("alice")
	a := env.seedPerson(tree.ID, "John", "Doe")
	b := env.seedPerson(tree.ID, "Jane", "Doe")

	rel, err := env.graph.CreateRelationship(ctx, "alice", &CreateRelationshipRequest{
		Person1ID: a.ID,
		Person2ID: b.ID,
		Type:      models.TypeSibling,
	})
	require.NoError(t, err)

	// Only the owner may delete
	err = env.treeService.DeleteTree(ctx, "bob", tree.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	require.NoError(t, env.treeService.DeleteTree(ctx, "alice", tree.ID))

	_, err = env.trees.GetByID(ctx, tree.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = env.persons.GetByID(ctx, a.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = env.relationships.GetByID(ctx, rel.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
