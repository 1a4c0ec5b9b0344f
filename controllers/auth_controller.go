package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/billboard/middleware"
	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/utils"
)

// AuthController handles registration, login and the caller's own identity.
type AuthController struct {
	users    *services.UserService
	guard    *utils.RegisterGuard
	tokenTTL time.Duration
	log      *zap.Logger
}

// NewAuthController creates a new AuthController. guard may be nil.
func NewAuthController(users *services.UserService, guard *utils.RegisterGuard, tokenTTL time.Duration, log *zap.Logger) *AuthController {
	return &AuthController{users: users, guard: guard, tokenTTL: tokenTTL, log: log}
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Register creates an account holding ROLE_USER.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if a.guard != nil {
		if !a.guard.TryAttempt(ctx.Request.Context(), ip) {
			utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, try again later")
			return
		}
		if !a.guard.Allowed(ctx.Request.Context(), ip) {
			utils.Error(ctx, http.StatusTooManyRequests, 42921, "daily registration limit reached")
			return
		}
	}

	user, err := a.users.Register(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	if a.guard != nil {
		a.guard.RecordSuccess(ctx.Request.Context(), ip)
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", user)
}

// Login verifies credentials and issues a bearer token. Unknown usernames
// and wrong passwords produce the same response.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	token, err := a.users.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(a.tokenTTL.Seconds()),
	})
}

// Me returns the identity resolved by the auth gate.
func (a *AuthController) Me(ctx *gin.Context) {
	id, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	utils.Success(ctx, id)
}
