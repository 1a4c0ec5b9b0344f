package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/billboard/models"
)

// WindowQuery selects one page of articles live at Now.
type WindowQuery struct {
	Now    time.Time
	Search string
	Page   int
	Size   int
	// IncludeUndated treats a missing start or end date as unbounded on that side.
	IncludeUndated bool
}

// ArticlePage is a slice of live articles plus the total match count.
type ArticlePage struct {
	Items []models.Article `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// TotalPages returns ceil(Total / Size).
func (p ArticlePage) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// ArticleStore persists articles and their attachment rows.
type ArticleStore struct {
	db *gorm.DB
}

// NewArticleStore creates an ArticleStore on db.
func NewArticleStore(db *gorm.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// FindLive returns the articles whose window contains q.Now, newest id first.
func (s *ArticleStore) FindLive(ctx context.Context, q WindowQuery) (ArticlePage, error) {
	page := ArticlePage{Items: []models.Article{}, Page: q.Page, Size: q.Size}

	scope := func(db *gorm.DB) *gorm.DB {
		if q.IncludeUndated {
			db = db.Where("(start_date IS NULL OR start_date < ?) AND (end_date IS NULL OR end_date > ?)", q.Now, q.Now)
		} else {
			db = db.Where("start_date < ? AND end_date > ?", q.Now, q.Now)
		}
		if q.Search != "" {
			like := "%" + escapeLike(q.Search) + "%"
			db = db.Where("(title LIKE ? ESCAPE '!' OR content LIKE ? ESCAPE '!')", like, like)
		}
		return db
	}

	if err := s.db.WithContext(ctx).Model(&models.Article{}).Scopes(scope).Count(&page.Total).Error; err != nil {
		return page, translate("count live articles", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	err := s.db.WithContext(ctx).
		Scopes(scope).
		Preload("User").
		Preload("Files").
		Order("id DESC").
		Offset(q.Page * q.Size).
		Limit(q.Size).
		Find(&page.Items).Error
	if err != nil {
		return page, translate("find live articles", err)
	}
	return page, nil
}

// FindByID loads an article with its author and files regardless of its window.
func (s *ArticleStore) FindByID(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	err := s.db.WithContext(ctx).Preload("User").Preload("Files").First(&a, id).Error
	if err != nil {
		return nil, translate("find article", err)
	}
	return &a, nil
}

// NextWindowChange returns the earliest start or end date after now, the
// next instant at which the set of live articles can change. It returns nil
// when no article has a pending bound.
func (s *ArticleStore) NextWindowChange(ctx context.Context, now time.Time) (*time.Time, error) {
	var next *time.Time
	for _, column := range []string{"start_date", "end_date"} {
		var a models.Article
		err := s.db.WithContext(ctx).
			Select("id", column).
			Where(column+" > ?", now).
			Order(column + " ASC").
			Take(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, translate("find next window change", err)
		}
		bound := a.StartDate
		if column == "end_date" {
			bound = a.EndDate
		}
		if bound != nil && (next == nil || bound.Before(*next)) {
			next = bound
		}
	}
	return next, nil
}

// IncrementReadCount adds one to the read counter in a single statement so
// concurrent readers never lose an increment.
func (s *ArticleStore) IncrementReadCount(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).
		UpdateColumn("read_count", gorm.Expr("read_count + ?", 1))
	if res.Error != nil {
		return translate("increment read count", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new article and its files in one transaction.
func (s *ArticleStore) Create(ctx context.Context, a *models.Article) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(a).Error; err != nil {
			return translate("create article", err)
		}
		for i := range a.Files {
			a.Files[i].ArticleID = a.ID
		}
		if len(a.Files) > 0 {
			if err := tx.Create(&a.Files).Error; err != nil {
				return translate("create files", err)
			}
		}
		return nil
	})
	return translate("create article", err)
}

// Save writes an existing article. Files no longer attached to a are deleted
// and files without an id are inserted, all in one transaction.
func (s *ArticleStore) Save(ctx context.Context, a *models.Article) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a.LastUpdateDate = time.Now().UTC()
		res := tx.Model(&models.Article{}).Where("id = ?", a.ID).
			Select("title", "content", "start_date", "end_date", "user_id", "last_update_date").
			Updates(map[string]interface{}{
				"title":            a.Title,
				"content":          a.Content,
				"start_date":       a.StartDate,
				"end_date":         a.EndDate,
				"user_id":          a.UserID,
				"last_update_date": a.LastUpdateDate,
			})
		if res.Error != nil {
			return translate("update article", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		keep := make([]uint, 0, len(a.Files))
		for _, f := range a.Files {
			if f.ID != 0 {
				keep = append(keep, f.ID)
			}
		}
		orphans := tx.Where("article_id = ?", a.ID)
		if len(keep) > 0 {
			orphans = orphans.Where("id NOT IN ?", keep)
		}
		if err := orphans.Delete(&models.File{}).Error; err != nil {
			return translate("delete detached files", err)
		}

		for i := range a.Files {
			if a.Files[i].ID != 0 {
				continue
			}
			a.Files[i].ArticleID = a.ID
			if err := tx.Create(&a.Files[i]).Error; err != nil {
				return translate("create files", err)
			}
		}
		return nil
	})
	return translate("save article", err)
}

// Delete removes an article and its files, returning the removed file rows
// so their blobs can be released by the caller.
func (s *ArticleStore) Delete(ctx context.Context, id uint) ([]models.File, error) {
	var files []models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Find(&files).Error; err != nil {
			return translate("load files", err)
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.File{}).Error; err != nil {
			return translate("delete files", err)
		}
		res := tx.Delete(&models.Article{}, id)
		if res.Error != nil {
			return translate("delete article", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate("delete article", err)
	}
	return files, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
