package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/billboard/models"
)

func TestUserStoreSaveAndFind(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	u := seedUser(t, db, "alice")
	require.NotZero(t, u.ID)

	got, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{models.RoleUser}, got.RoleNames())

	_, err = users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := users.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserStoreUpdateReplacesRoles(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	roles := NewRoleStore(db)
	ctx := context.Background()

	u := seedUser(t, db, "alice")
	admin, err := roles.FindByName(ctx, models.RoleAdmin)
	require.NoError(t, err)

	u.Enabled = false
	u.Roles = append(u.Roles, *admin)
	require.NoError(t, users.Save(ctx, u))

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.ElementsMatch(t, []string{models.RoleUser, models.RoleAdmin}, got.RoleNames())

	got.Roles = []models.Role{*admin}
	require.NoError(t, users.Save(ctx, got))
	got, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, got.RoleNames())
}

func TestUserStoreDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "alice")

	err := NewUserStore(db).Save(context.Background(), &models.User{Username: "alice", PasswordHash: "y", Enabled: true})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserStoreList(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	for _, name := range []string{"alice", "alicia", "bob", "under_score"} {
		seedUser(t, db, name)
	}

	all, err := users.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	some, err := users.List(context.Background(), "ali")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "alice", some[0].Username)

	escaped, err := users.List(context.Background(), "_")
	require.NoError(t, err)
	require.Len(t, escaped, 1)
	assert.Equal(t, "under_score", escaped[0].Username)
}

func TestRoleStoreEnsureIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	roles := NewRoleStore(db)
	ctx := context.Background()

	require.NoError(t, roles.EnsureRoles(ctx, models.RoleUser))
	require.NoError(t, roles.EnsureRoles(ctx, models.RoleUser, models.RoleAdmin))

	var n int64
	require.NoError(t, db.Model(&models.Role{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)

	_, err := roles.FindByName(ctx, "ROLE_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}
