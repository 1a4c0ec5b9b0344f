package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/config"
	"github.com/cppla/billboard/controllers"
	"github.com/cppla/billboard/metrics"
	"github.com/cppla/billboard/middleware"
	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/utils"
)

// Deps is everything the router needs; main builds it once at boot.
type Deps struct {
	Config        config.AppConfig
	Board         *services.BoardService
	Users         *services.UserService
	Authenticator middleware.Authenticator
	Policy        *auth.Policy
	Guard         *utils.RegisterGuard
	TokenTTL      time.Duration
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger
	AccessLogger  *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	policy := d.Policy
	if policy == nil {
		policy = auth.DefaultPolicy()
	}

	r := gin.New()
	if d.AccessLogger != nil {
		r.Use(ginzap.Ginzap(d.AccessLogger, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(d.AccessLogger, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	r.Use(middleware.AuthGate(d.Authenticator, policy, d.Metrics, log))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	authController := controllers.NewAuthController(d.Users, d.Guard, d.TokenTTL, log)
	articleController := controllers.NewArticleController(d.Board, log)
	userController := controllers.NewUserController(d.Users, log)

	r.POST("/register", authController.Register)
	r.POST("/login", authController.Login)

	api := r.Group("/api")
	api.GET("/me", authController.Me)

	articles := api.Group("/articles")
	articles.GET("", articleController.ListArticles)
	articles.GET("/:id", articleController.GetArticle)
	articles.POST("", articleController.CreateArticle)
	articles.PUT("/:id", articleController.UpdateArticle)
	articles.DELETE("/:id", articleController.DeleteArticle)

	users := api.Group("/users")
	users.GET("", userController.ListUsers)
	users.GET("/:id", userController.GetUser)
	users.POST("", userController.CreateUser)
	users.PUT("/:id", userController.UpdateUser)
	users.DELETE("/:id", userController.DeactivateUser)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
