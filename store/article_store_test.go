package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cppla/billboard/models"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func createArticle(t *testing.T, s *ArticleStore, owner *models.User, title, content string, start, end *time.Time, files ...models.File) *models.Article {
	t.Helper()
	a := &models.Article{Title: title, Content: content, StartDate: start, EndDate: end, UserID: &owner.ID}
	for _, f := range files {
		a.AddFile(f)
	}
	require.NoError(t, s.Create(context.Background(), a))
	return a
}

func testFile(name string) models.File {
	return models.File{
		FileName:    name,
		StoragePath: "2026/05/10/" + name,
		Size:        3,
		MimeType:    "text/plain",
		UploadedAt:  testNow,
		UploadedBy:  "alice",
	}
}

func liveIDs(p ArticlePage) []uint {
	ids := make([]uint, 0, len(p.Items))
	for _, a := range p.Items {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestFindLiveWindow(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")

	live := createArticle(t, s, owner, "live", "body", ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour)))
	createArticle(t, s, owner, "future", "body", ptr(testNow.Add(time.Hour)), ptr(testNow.Add(2*time.Hour)))
	createArticle(t, s, owner, "expired", "body", ptr(testNow.Add(-2*time.Hour)), ptr(testNow.Add(-time.Hour)))
	createArticle(t, s, owner, "starts now", "body", ptr(testNow), ptr(testNow.Add(time.Hour)))
	createArticle(t, s, owner, "ends now", "body", ptr(testNow.Add(-time.Hour)), ptr(testNow))
	undated := createArticle(t, s, owner, "undated", "body", nil, nil)
	openEnd := createArticle(t, s, owner, "open end", "body", ptr(testNow.Add(-time.Hour)), nil)

	page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Page: 0, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, []uint{live.ID}, liveIDs(page))

	page, err = s.FindLive(context.Background(), WindowQuery{Now: testNow, Page: 0, Size: 10, IncludeUndated: true})
	require.NoError(t, err)
	assert.Equal(t, []uint{openEnd.ID, undated.ID, live.ID}, liveIDs(page))
}

func TestFindLivePreloadsAuthorAndFiles(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	createArticle(t, s, owner, "live", "body", ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour)), testFile("a.txt"))

	page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].User)
	assert.Equal(t, "alice", page.Items[0].User.Username)
	require.Len(t, page.Items[0].Files, 1)
	assert.Equal(t, "a.txt", page.Items[0].Files[0].FileName)
}

func TestFindLiveSearch(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	start, end := ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour))

	byTitle := createArticle(t, s, owner, "Spring sale", "details inside", start, end)
	byContent := createArticle(t, s, owner, "Notice", "the spring sale starts", start, end)
	createArticle(t, s, owner, "Unrelated", "nothing here", start, end)
	createArticle(t, s, owner, "sale expired", "sale", ptr(testNow.Add(-3*time.Hour)), ptr(testNow.Add(-2*time.Hour)))

	page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Search: "sale", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{byContent.ID, byTitle.ID}, liveIDs(page))
	assert.Equal(t, int64(2), page.Total)
}

func TestFindLiveSearchEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	start, end := ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour))

	percent := createArticle(t, s, owner, "50% off", "body", start, end)
	createArticle(t, s, owner, "500 off", "body", start, end)
	underscore := createArticle(t, s, owner, "a_b", "body", start, end)
	createArticle(t, s, owner, "axb", "body", start, end)

	page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Search: "50%", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{percent.ID}, liveIDs(page))

	page, err = s.FindLive(context.Background(), WindowQuery{Now: testNow, Search: "a_b", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{underscore.ID}, liveIDs(page))
}

func TestFindLiveSearchKeepsBlanks(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	start, end := ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour))

	spaced := createArticle(t, s, owner, "big sale", "body", start, end)
	createArticle(t, s, owner, "sale", "body", start, end)

	page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Search: " sale", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{spaced.ID}, liveIDs(page))
}

func TestNextWindowChange(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	next, err := s.NextWindowChange(ctx, testNow)
	require.NoError(t, err)
	assert.Nil(t, next)

	createArticle(t, s, owner, "expired", "body", ptr(testNow.Add(-2*time.Hour)), ptr(testNow.Add(-time.Hour)))
	createArticle(t, s, owner, "live", "body", ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(3*time.Hour)))
	next, err = s.NextWindowChange(ctx, testNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Equal(testNow.Add(3*time.Hour)))

	createArticle(t, s, owner, "scheduled", "body", ptr(testNow.Add(time.Minute)), ptr(testNow.Add(2*time.Hour)))
	next, err = s.NextWindowChange(ctx, testNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Equal(testNow.Add(time.Minute)))
}

func TestFindLivePaginationIsDeterministic(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	for i := 0; i < 25; i++ {
		createArticle(t, s, owner, fmt.Sprintf("article %02d", i), "body", ptr(testNow.Add(-time.Hour)), ptr(testNow.Add(time.Hour)))
	}

	seen := map[uint]bool{}
	var all []uint
	for pageNo, want := range []int{10, 10, 5, 0} {
		page, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Page: pageNo, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 3, page.TotalPages())
		require.Len(t, page.Items, want, "page %d", pageNo)
		for _, id := range liveIDs(page) {
			assert.False(t, seen[id], "id %d repeated", id)
			seen[id] = true
			all = append(all, id)
		}
	}
	require.Len(t, all, 25)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1], all[i])
	}

	again, err := s.FindLive(context.Background(), WindowQuery{Now: testNow, Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, all[10:20], liveIDs(again))
}

func TestIncrementReadCount(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	a := createArticle(t, s, owner, "counted", "body", nil, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.IncrementReadCount(context.Background(), a.ID))
	}
	got, err := s.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ReadCount)

	assert.ErrorIs(t, s.IncrementReadCount(context.Background(), a.ID+100), ErrNotFound)
}

func TestCreateBindsFiles(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	a := createArticle(t, s, owner, "with files", "body", nil, nil, testFile("a.txt"), testFile("b.txt"))

	require.NotZero(t, a.ID)
	for _, f := range a.Files {
		assert.NotZero(t, f.ID)
		assert.Equal(t, a.ID, f.ArticleID)
	}
	assert.Equal(t, int64(0), a.ReadCount)
	assert.False(t, a.RegDate.IsZero())

	got, err := s.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, got.Files, 2)
	assert.Equal(t, owner.ID, *got.UserID)
}

func TestSaveReplacesFieldsAndFiles(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	other := seedUser(t, db, "bob")
	a := createArticle(t, s, owner, "before", "body", nil, nil, testFile("keep.txt"), testFile("drop.txt"))
	require.NoError(t, s.IncrementReadCount(context.Background(), a.ID))

	a, err := s.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	regDate := a.RegDate
	var drop models.File
	for _, f := range a.Files {
		if f.FileName == "drop.txt" {
			drop = f
		}
	}
	require.NotZero(t, drop.ID)
	_, ok := a.RemoveFile(drop.ID)
	require.True(t, ok)
	a.AddFile(testFile("new.txt"))
	a.Title = "after"
	a.UserID = &other.ID

	require.NoError(t, s.Save(context.Background(), a))

	got, err := s.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, other.ID, *got.UserID)
	assert.Equal(t, int64(1), got.ReadCount)
	assert.True(t, regDate.Equal(got.RegDate))
	names := []string{}
	for _, f := range got.Files {
		names = append(names, f.FileName)
		assert.Equal(t, a.ID, f.ArticleID)
	}
	assert.ElementsMatch(t, []string{"keep.txt", "new.txt"}, names)

	var orphan int64
	require.NoError(t, db.Model(&models.File{}).Where("id = ?", drop.ID).Count(&orphan).Error)
	assert.Zero(t, orphan)
}

func TestSaveMissingArticle(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	err := s.Save(context.Background(), &models.Article{ID: 42, Title: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCascadesFiles(t *testing.T) {
	db := newTestDB(t)
	s := NewArticleStore(db)
	owner := seedUser(t, db, "alice")
	a := createArticle(t, s, owner, "doomed", "body", nil, nil, testFile("a.txt"), testFile("b.txt"))
	survivor := createArticle(t, s, owner, "survivor", "body", nil, nil, testFile("c.txt"))

	files, err := s.Delete(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = s.FindByID(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.File{}).Where("article_id = ?", a.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.File{}).Where("article_id = ?", survivor.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	_, err = s.Delete(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFailureIsStorageError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	s := NewArticleStore(db)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	_, err = s.FindByID(context.Background(), 1)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "find article", se.Op)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("UPDATE").WillReturnError(errors.New("deadlock"))
	err = s.IncrementReadCount(context.Background(), 1)
	require.ErrorAs(t, err, &se)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("timeout"))
	_, err = s.FindLive(context.Background(), WindowQuery{Now: testNow, Size: 10})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count live articles", se.Op)

	assert.NoError(t, mock.ExpectationsWereMet())
}
