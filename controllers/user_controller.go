package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/utils"
)

// UserController is the admin user API.
type UserController struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserController(users *services.UserService, log *zap.Logger) *UserController {
	return &UserController{users: users, log: log}
}

// ListUsers returns every user, optionally those whose username contains ?username=.
func (u *UserController) ListUsers(ctx *gin.Context) {
	users, err := u.users.List(ctx.Request.Context(), ctx.Query("username"))
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	utils.Success(ctx, gin.H{"items": users, "total": len(users)})
}

func (u *UserController) GetUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	user, err := u.users.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	utils.Success(ctx, user)
}

func (u *UserController) CreateUser(ctx *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	user, err := u.users.Create(ctx.Request.Context(), req.Username, req.Password, enabled)
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", user)
}

func (u *UserController) UpdateUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req services.UserUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	user, err := u.users.Update(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	utils.Success(ctx, user)
}

// DeactivateUser disables the account instead of deleting it.
func (u *UserController) DeactivateUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := u.users.Deactivate(ctx.Request.Context(), id); err != nil {
		respondError(ctx, u.log, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
