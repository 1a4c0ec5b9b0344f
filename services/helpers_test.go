package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/config"
	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/storage"
	"github.com/cppla/billboard/store"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.InitDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		LogLevel:    "silent",
	}, &models.Role{}, &models.User{}, &models.Article{}, &models.File{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, store.NewRoleStore(db).EnsureRoles(context.Background(), models.RoleUser, models.RoleAdmin))
	return db
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu        sync.Mutex
	seq       int
	objects   map[string][]byte
	deleted   []string
	failAfter int
	deleteErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, failAfter: -1}
}

func (m *memBlobs) Store(_ context.Context, r io.Reader, meta storage.BlobMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && len(m.objects) >= m.failAfter {
		return "", storage.ErrTooLarge
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.seq++
	loc := fmt.Sprintf("blob/%d/%s", m.seq, meta.FileName)
	m.objects[loc] = b
	return loc, nil
}

func (m *memBlobs) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, location)
	m.deleted = append(m.deleted, location)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func upload(name, body string) Upload {
	return Upload{FileName: name, MimeType: "text/plain", Size: int64(len(body)), Body: bytes.NewBufferString(body)}
}

// countingRepo records calls and can fail writes.
type countingRepo struct {
	ArticleRepository
	calls    int
	writeErr error
}

func (c *countingRepo) FindLive(ctx context.Context, q store.WindowQuery) (store.ArticlePage, error) {
	c.calls++
	return c.ArticleRepository.FindLive(ctx, q)
}

func (c *countingRepo) FindByID(ctx context.Context, id uint) (*models.Article, error) {
	c.calls++
	return c.ArticleRepository.FindByID(ctx, id)
}

func (c *countingRepo) Create(ctx context.Context, a *models.Article) error {
	c.calls++
	if c.writeErr != nil {
		return c.writeErr
	}
	return c.ArticleRepository.Create(ctx, a)
}

func (c *countingRepo) Save(ctx context.Context, a *models.Article) error {
	c.calls++
	if c.writeErr != nil {
		return c.writeErr
	}
	return c.ArticleRepository.Save(ctx, a)
}

var errWriteFailed = &store.StorageError{Op: "test", Err: errors.New("disk full")}

func seedIdentity(t *testing.T, db *gorm.DB, username string) auth.Identity {
	t.Helper()
	ctx := context.Background()
	role, err := store.NewRoleStore(db).FindByName(ctx, models.RoleUser)
	require.NoError(t, err)
	u := &models.User{Username: username, PasswordHash: "x", Enabled: true, Roles: []models.Role{*role}}
	require.NoError(t, store.NewUserStore(db).Save(ctx, u))
	return auth.Identity{UserID: u.ID, Username: u.Username, Roles: u.RoleNames()}
}

func tptr(t time.Time) *time.Time { return &t }
