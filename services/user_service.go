package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/store"
	"github.com/cppla/billboard/utils"
)

// ErrBadCredentials is returned by Login for an unknown username and for a
// wrong password alike.
var ErrBadCredentials = errors.New("invalid username or password")

const usernameMaxLen = 64

// dummyHash is compared against when the username is unknown, so a failed
// login costs one bcrypt comparison either way.
var dummyHash = sync.OnceValue(func() string {
	h, err := utils.HashPassword("billboard-unknown-user")
	if err != nil {
		return ""
	}
	return h
})

// UserRepository is the credential store used by UserService.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, usernameLike string) ([]models.User, error)
	Save(ctx context.Context, u *models.User) error
}

// RoleRepository resolves roles by name.
type RoleRepository interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
}

// UserUpdate carries the optional fields of an admin edit.
type UserUpdate struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Enabled  *bool   `json:"enabled"`
}

// UserService handles registration, login and user administration.
type UserService struct {
	users  UserRepository
	roles  RoleRepository
	tokens *auth.TokenService
	admins map[string]struct{}
	log    *zap.Logger

	checkPassword func(hash, password string) bool
}

// NewUserService creates a UserService. Usernames in admins receive
// ROLE_ADMIN in addition to ROLE_USER when they register.
func NewUserService(users UserRepository, roles RoleRepository, tokens *auth.TokenService, admins []string, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	return &UserService{users: users, roles: roles, tokens: tokens, admins: set, log: log, checkPassword: utils.CheckPassword}
}

// Register creates an enabled account holding ROLE_USER.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	return s.create(ctx, username, password, true)
}

// Create is the admin variant of Register.
func (s *UserService) Create(ctx context.Context, username, password string, enabled bool) (*models.User, error) {
	return s.create(ctx, username, password, enabled)
}

func (s *UserService) create(ctx context.Context, username, password string, enabled bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}

	roles, err := s.rolesFor(ctx, username)
	if err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: username, PasswordHash: hash, Enabled: enabled, Roles: roles}
	if err := s.users.Save(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (s *UserService) rolesFor(ctx context.Context, username string) ([]models.Role, error) {
	names := []string{models.RoleUser}
	if _, ok := s.admins[username]; ok {
		names = append(names, models.RoleAdmin)
	}
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		r, err := s.roles.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.log.Error("role missing, seed roles before accepting registrations", zap.String("role", name))
				return nil, fmt.Errorf("%w: %s", ErrRoleMissing, name)
			}
			return nil, err
		}
		roles = append(roles, *r)
	}
	return roles, nil
}

// Login checks the password and issues a bearer token for the account.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.checkPassword(dummyHash(), password)
			return "", ErrBadCredentials
		}
		return "", err
	}
	if !s.checkPassword(u.PasswordHash, password) {
		return "", ErrBadCredentials
	}
	if !u.Enabled {
		return "", auth.ErrDisabled
	}
	return s.tokens.Issue(u.Username)
}

// List returns users whose username contains usernameLike.
func (s *UserService) List(ctx context.Context, usernameLike string) ([]models.User, error) {
	return s.users.List(ctx, usernameLike)
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// Update applies the non-nil fields of in. A new password is hashed.
func (s *UserService) Update(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		switch {
		case name == "":
			verr.add("username", "username.empty", "username is required")
		case utf8.RuneCountInString(name) > usernameMaxLen:
			verr.add("username", "username.size", "username must be at most 64 characters")
		case name != u.Username:
			exists, err := s.users.ExistsByUsername(ctx, name)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrConflict
			}
			u.Username = name
		}
	}
	if in.Password != nil {
		if *in.Password == "" {
			verr.add("password", "password.empty", "password is required")
		} else {
			hash, err := utils.HashPassword(*in.Password)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			u.PasswordHash = hash
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if in.Enabled != nil {
		u.Enabled = *in.Enabled
	}

	if err := s.users.Save(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return u, nil
}

// Deactivate switches the account off. Tokens already issued stop working on
// their next use because the gate rejects disabled users.
func (s *UserService) Deactivate(ctx context.Context, id uint) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.Enabled {
		return nil
	}
	u.Enabled = false
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.Uint("user_id", u.ID))
	return nil
}

func validateCredentials(username, password string) error {
	verr := &ValidationError{}
	if username == "" {
		verr.add("username", "username.empty", "username is required")
	} else if utf8.RuneCountInString(username) > usernameMaxLen {
		verr.add("username", "username.size", "username must be at most 64 characters")
	}
	if password == "" {
		verr.add("password", "password.empty", "password is required")
	}
	return verr.orNil()
}
