package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/storage"
	"github.com/cppla/billboard/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// parsePagination reads the zero based page and the page size. Values that
// are not numbers fall back to the defaults; range checks are left to the service.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page, size := 0, defaultPageSize
	if p, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil {
		page = p
	}
	if s, err := strconv.Atoi(strings.TrimSpace(sizeStr)); err == nil {
		size = s
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors onto the response envelope. Only
// unexpected failures are logged.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Respond(ctx, http.StatusBadRequest, 40001, "validation failed", verr)
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
	case errors.Is(err, services.ErrBadCredentials):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
	case errors.Is(err, auth.ErrDisabled):
		utils.Error(ctx, http.StatusUnauthorized, 40108, "account disabled")
	case errors.Is(err, storage.ErrTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
	case errors.Is(err, services.ErrRoleMissing):
		log.Error("role configuration missing", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "server role configuration missing")
	default:
		log.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Error(err),
		)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}
