package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/billboard/config"
	"github.com/cppla/billboard/models"
)

// newTestDB opens a private in-memory sqlite database with the schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.InitDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel:    "silent",
	}, &models.Role{}, &models.User{}, &models.Article{}, &models.File{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ptr(t time.Time) *time.Time { return &t }

// seedUser stores an enabled user with ROLE_USER.
func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	roles := NewRoleStore(db)
	require.NoError(t, roles.EnsureRoles(ctx, models.RoleUser, models.RoleAdmin))
	role, err := roles.FindByName(ctx, models.RoleUser)
	require.NoError(t, err)
	u := &models.User{Username: username, PasswordHash: "x", Enabled: true, Roles: []models.Role{*role}}
	require.NoError(t, NewUserStore(db).Save(ctx, u))
	return u
}
