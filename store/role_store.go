package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/billboard/models"
)

// RoleStore looks up and seeds roles.
type RoleStore struct {
	db *gorm.DB
}

// NewRoleStore creates a RoleStore on db.
func NewRoleStore(db *gorm.DB) *RoleStore {
	return &RoleStore{db: db}
}

// FindByName returns the role with the exact name.
func (s *RoleStore) FindByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&r).Error; err != nil {
		return nil, translate("find role", err)
	}
	return &r, nil
}

// EnsureRoles creates any of the named roles that do not exist yet.
func (s *RoleStore) EnsureRoles(ctx context.Context, names ...string) error {
	for _, name := range names {
		r := models.Role{Name: name}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error
		if err != nil {
			return translate("seed role", err)
		}
	}
	return nil
}
