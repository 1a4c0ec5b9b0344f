package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/metrics"
	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/store"
)

// ArticleRepository is the persistence the board needs.
type ArticleRepository interface {
	FindLive(ctx context.Context, q store.WindowQuery) (store.ArticlePage, error)
	FindByID(ctx context.Context, id uint) (*models.Article, error)
	IncrementReadCount(ctx context.Context, id uint) error
	Create(ctx context.Context, a *models.Article) error
	Save(ctx context.Context, a *models.Article) error
	Delete(ctx context.Context, id uint) ([]models.File, error)
	NextWindowChange(ctx context.Context, now time.Time) (*time.Time, error)
}

// PageCache caches unfiltered list pages.
type PageCache interface {
	Get(ctx context.Context, page, size int) (store.ArticlePage, bool)
	// Set stores p computed at now. The entry must not outlive until when it is set.
	Set(ctx context.Context, p store.ArticlePage, now time.Time, until *time.Time)
	Invalidate(ctx context.Context)
}

// BoardOptions tunes the publication window behaviour.
type BoardOptions struct {
	// IncludeUndated lists articles with a missing start or end date as open on that side.
	IncludeUndated bool
	// DeleteMissingIsError makes Delete of an unknown id return ErrNotFound.
	DeleteMissingIsError bool
}

// ArticleUpdate is an edit request. The four editable fields replace the stored ones.
type ArticleUpdate struct {
	ArticleInput
	RemoveFileIDs []uint `json:"remove_file_ids"`
}

// BoardService lists, reads and edits articles within their publication window.
type BoardService struct {
	articles    ArticleRepository
	attachments *AttachmentManager
	cache       PageCache
	metrics     *metrics.Collector
	log         *zap.Logger
	opts        BoardOptions
	now         func() time.Time
}

// BoardOption customises a BoardService.
type BoardOption func(*BoardService)

// WithPageCache enables list page caching.
func WithPageCache(c PageCache) BoardOption {
	return func(s *BoardService) { s.cache = c }
}

// WithBoardClock overrides the wall clock.
func WithBoardClock(now func() time.Time) BoardOption {
	return func(s *BoardService) { s.now = now }
}

// WithBoardMetrics records reads, creations and deletions.
func WithBoardMetrics(m *metrics.Collector) BoardOption {
	return func(s *BoardService) { s.metrics = m }
}

// NewBoardService wires the board over its repository and attachment manager.
func NewBoardService(articles ArticleRepository, attachments *AttachmentManager, opts BoardOptions, log *zap.Logger, options ...BoardOption) *BoardService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &BoardService{
		articles:    articles,
		attachments: attachments,
		log:         log,
		opts:        opts,
		now:         time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// List returns one page of live articles, newest first. page is zero based.
func (s *BoardService) List(ctx context.Context, searchText string, page, size int) (store.ArticlePage, error) {
	verr := &ValidationError{}
	if page < 0 {
		verr.add("page", "page.invalid", "page must not be negative")
	}
	if size <= 0 {
		verr.add("size", "size.invalid", "size must be positive")
	}
	if err := verr.orNil(); err != nil {
		return store.ArticlePage{}, err
	}

	search := searchText
	now := s.now().UTC()
	if search == "" && s.cache != nil {
		if p, ok := s.cache.Get(ctx, page, size); ok {
			return p, nil
		}
	}

	p, err := s.articles.FindLive(ctx, store.WindowQuery{
		Now:            now,
		Search:         search,
		Page:           page,
		Size:           size,
		IncludeUndated: s.opts.IncludeUndated,
	})
	if err != nil {
		return store.ArticlePage{}, err
	}
	if search == "" && s.cache != nil {
		s.cachePage(ctx, p, now)
	}
	return p, nil
}

// Get fetches an article by id and counts the read. Every successful fetch
// increments readCount once, independent of the publication window.
func (s *BoardService) Get(ctx context.Context, id uint) (*models.Article, error) {
	if err := s.articles.IncrementReadCount(ctx, id); err != nil {
		return nil, err
	}
	a, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordArticleRead()
	return a, nil
}

// Create validates in, stores the uploads and persists the article owned by caller.
func (s *BoardService) Create(ctx context.Context, in ArticleInput, uploads []Upload, caller auth.Identity) (*models.Article, error) {
	in = in.Normalize()
	if err := validateNormalized(in, s.now()); err != nil {
		return nil, err
	}

	files, err := s.attachments.Store(ctx, uploads, caller)
	if err != nil {
		return nil, err
	}

	ownerID := caller.UserID
	a := &models.Article{UserID: &ownerID}
	s.apply(a, in)
	s.attachments.Attach(a, files...)

	if err := s.articles.Create(ctx, a); err != nil {
		s.attachments.Discard(ctx, files)
		return nil, err
	}
	s.invalidate(ctx)
	s.metrics.RecordArticleCreated()
	s.log.Info("article created", zap.Uint("article_id", a.ID), zap.String("user", caller.Username), zap.Int("files", len(files)))
	return a, nil
}

// Update replaces the editable fields of article id, detaches and attaches
// files, and reassigns ownership to caller. readCount and the registration
// date are left alone.
func (s *BoardService) Update(ctx context.Context, id uint, in ArticleUpdate, uploads []Upload, caller auth.Identity) (*models.Article, error) {
	in.ArticleInput = in.ArticleInput.Normalize()
	if err := validateNormalized(in.ArticleInput, s.now()); err != nil {
		return nil, err
	}

	a, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	removed, err := s.attachments.Detach(a, in.RemoveFileIDs...)
	if err != nil {
		return nil, err
	}

	added, err := s.attachments.Store(ctx, uploads, caller)
	if err != nil {
		return nil, err
	}

	s.apply(a, in.ArticleInput)
	ownerID := caller.UserID
	a.UserID = &ownerID
	a.User = nil
	s.attachments.Attach(a, added...)

	if err := s.articles.Save(ctx, a); err != nil {
		s.attachments.Discard(ctx, added)
		return nil, err
	}
	s.attachments.Discard(ctx, removed)
	s.invalidate(ctx)
	s.log.Info("article updated", zap.Uint("article_id", a.ID), zap.String("user", caller.Username),
		zap.Int("files_added", len(added)), zap.Int("files_removed", len(removed)))

	return s.articles.FindByID(ctx, id)
}

// Delete removes the article and its files in one transaction, then
// releases the blobs.
func (s *BoardService) Delete(ctx context.Context, id uint) error {
	files, err := s.articles.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && !s.opts.DeleteMissingIsError {
			return nil
		}
		return err
	}
	s.attachments.Discard(ctx, files)
	s.invalidate(ctx)
	s.metrics.RecordArticleDeleted()
	s.log.Info("article deleted", zap.Uint("article_id", id), zap.Int("files", len(files)))
	return nil
}

// apply copies an already normalized input onto a.
func (s *BoardService) apply(a *models.Article, in ArticleInput) {
	a.Title = in.Title
	a.Content = in.Content
	a.StartDate = in.StartDate
	a.EndDate = in.EndDate
}

// cachePage stores p only until the next start or end date after now, when
// the set of live articles can change.
func (s *BoardService) cachePage(ctx context.Context, p store.ArticlePage, now time.Time) {
	next, err := s.articles.NextWindowChange(ctx, now)
	if err != nil {
		s.log.Warn("skip list cache, window change lookup failed", zap.Error(err))
		return
	}
	s.cache.Set(ctx, p, now, next)
}

func (s *BoardService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
