package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/billboard/models"
)

// UserStore persists accounts and their role assignments.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a UserStore on db.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByUsername loads a user and its roles by exact username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, translate("find user", err)
	}
	return &u, nil
}

// FindByID loads a user and its roles.
func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Roles").First(&u, id).Error; err != nil {
		return nil, translate("find user", err)
	}
	return &u, nil
}

// ExistsByUsername reports whether the username is taken.
func (s *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, translate("count users", err)
	}
	return n > 0, nil
}

// List returns users ordered by id whose username contains usernameLike.
func (s *UserStore) List(ctx context.Context, usernameLike string) ([]models.User, error) {
	users := []models.User{}
	q := s.db.WithContext(ctx).Preload("Roles").Order("id ASC")
	if term := strings.TrimSpace(usernameLike); term != "" {
		q = q.Where("username LIKE ? ESCAPE '!'", "%"+escapeLike(term)+"%")
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

// Save inserts u when it has no id and updates it otherwise. The role set
// stored for the user is replaced by u.Roles.
func (s *UserStore) Save(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := u.Roles
		if u.ID == 0 {
			if err := tx.Omit("Roles").Create(u).Error; err != nil {
				return translate("create user", err)
			}
		} else {
			u.UpdatedAt = time.Now().UTC()
			res := tx.Model(&models.User{}).Where("id = ?", u.ID).
				Select("username", "password_hash", "enabled", "updated_at").
				Updates(map[string]interface{}{
					"username":      u.Username,
					"password_hash": u.PasswordHash,
					"enabled":       u.Enabled,
					"updated_at":    u.UpdatedAt,
				})
			if res.Error != nil {
				return translate("update user", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		if err := tx.Model(u).Association("Roles").Replace(roles); err != nil {
			return translate("replace roles", err)
		}
		u.Roles = roles
		return nil
	})
	return translate("save user", err)
}
