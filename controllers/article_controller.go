package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/billboard/middleware"
	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/utils"
)

// ArticleController exposes the publication window over HTTP.
type ArticleController struct {
	board *services.BoardService
	log   *zap.Logger
}

// NewArticleController creates a new ArticleController instance.
func NewArticleController(board *services.BoardService, log *zap.Logger) *ArticleController {
	return &ArticleController{board: board, log: log}
}

type articleRequest struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	RemoveFileIDs []uint     `json:"remove_file_ids"`
}

func (r articleRequest) input() services.ArticleInput {
	return services.ArticleInput{Title: r.Title, Content: r.Content, StartDate: r.StartDate, EndDate: r.EndDate}
}

// ListArticles returns the live articles, optionally filtered by searchText.
func (a *ArticleController) ListArticles(ctx *gin.Context) {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("size"))
	result, err := a.board.List(ctx.Request.Context(), ctx.Query("searchText"), page, size)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, gin.H{
		"items": result.Items,
		"pagination": gin.H{
			"page":        result.Page,
			"size":        result.Size,
			"total":       result.Total,
			"total_pages": result.TotalPages(),
		},
	})
}

// GetArticle returns one article and counts the read.
func (a *ArticleController) GetArticle(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	article, err := a.board.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, article)
}

// CreateArticle accepts multipart (part "article" plus "files") or plain JSON.
func (a *ArticleController) CreateArticle(ctx *gin.Context) {
	caller, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	req, uploads, closeAll, err := readArticleRequest(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	defer closeAll()

	article, err := a.board.Create(ctx.Request.Context(), req.input(), uploads, caller)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", article)
}

// UpdateArticle replaces the editable fields, attaches new files and detaches
// remove_file_ids. The caller becomes the owner.
func (a *ArticleController) UpdateArticle(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	caller, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	req, uploads, closeAll, err := readArticleRequest(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	defer closeAll()

	update := services.ArticleUpdate{ArticleInput: req.input(), RemoveFileIDs: req.RemoveFileIDs}
	article, err := a.board.Update(ctx.Request.Context(), id, update, uploads, caller)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, article)
}

// DeleteArticle removes the article and its files.
func (a *ArticleController) DeleteArticle(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := a.board.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// readArticleRequest decodes the article fields and opens any uploaded files.
// The returned func closes the opened files.
func readArticleRequest(ctx *gin.Context) (articleRequest, []services.Upload, func(), error) {
	var req articleRequest
	noop := func() {}

	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return req, nil, noop, err
		}
		return req, nil, noop, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return req, nil, noop, err
	}
	raw, err := articlePart(form)
	if err != nil {
		return req, nil, noop, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, nil, noop, err
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	uploads := make([]services.Upload, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		if fh.Size == 0 && fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return req, nil, noop, err
		}
		opened = append(opened, f)
		uploads = append(uploads, services.Upload{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Body:     f,
		})
	}
	return req, uploads, closeAll, nil
}

// articlePart returns the "article" JSON, sent either as a plain field or as a file part.
func articlePart(form *multipart.Form) ([]byte, error) {
	if v := form.Value["article"]; len(v) > 0 {
		return []byte(v[0]), nil
	}
	if fhs := form.File["article"]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, 1<<20))
	}
	return nil, errors.New("missing article part")
}
