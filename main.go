package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/config"
	"github.com/cppla/billboard/metrics"
	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/routes"
	"github.com/cppla/billboard/services"
	"github.com/cppla/billboard/storage"
	"github.com/cppla/billboard/store"
	"github.com/cppla/billboard/utils"
)

func main() {
	cfg := config.Load()

	logger, err := utils.InitLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	accessLogger, err := utils.NewAccessLogger(cfg)
	if err != nil {
		logger.Fatal("init access logger", zap.Error(err))
	}

	db, err := config.InitDatabase(cfg, &models.Role{}, &models.User{}, &models.Article{}, &models.File{})
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}

	ctx := context.Background()
	articleStore := store.NewArticleStore(db)
	userStore := store.NewUserStore(db)
	roleStore := store.NewRoleStore(db)
	if cfg.SeedRoles {
		if err := roleStore.EnsureRoles(ctx, models.RoleUser, models.RoleAdmin); err != nil {
			logger.Fatal("seed roles", zap.Error(err))
		}
	}

	key := []byte(cfg.JWTSecret)
	if len(key) == 0 {
		key, err = auth.GenerateKey()
		if err != nil {
			logger.Fatal("generate signing key", zap.Error(err))
		}
		logger.Warn("JWT_SECRET not set, using a random per-process signing key; tokens will not survive a restart or work across instances")
	}
	tokens, err := auth.NewTokenService(key, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	if err != nil {
		logger.Fatal("init token service", zap.Error(err))
	}

	policy, err := buildPolicy(cfg)
	if err != nil {
		logger.Fatal("load route policy", zap.Error(err))
	}

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("init blob storage", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	rdb, err := utils.NewRedis(cfg)
	if err != nil {
		logger.Warn("redis unreachable, falling back where possible", zap.Error(err))
	}

	boardOpts := []services.BoardOption{services.WithBoardMetrics(collector)}
	if rdb != nil && cfg.ListCacheSeconds > 0 {
		cache := utils.NewListCache(rdb, time.Duration(cfg.ListCacheSeconds)*time.Second, logger.Named("cache"))
		boardOpts = append(boardOpts, services.WithPageCache(cache))
	}

	attachments := services.NewAttachmentManager(blobs, collector, logger.Named("attachments"))
	board := services.NewBoardService(articleStore, attachments, services.BoardOptions{
		IncludeUndated:       cfg.IncludeUndated,
		DeleteMissingIsError: cfg.DeleteMissingIsError,
	}, logger.Named("board"), boardOpts...)
	users := services.NewUserService(userStore, roleStore, tokens, cfg.AdminUsernames, logger.Named("users"))
	guard := utils.NewRegisterGuard(rdb, time.Duration(cfg.RegisterAttemptCooldownSec)*time.Second, cfg.RegisterMaxPerIPPerDay)

	r := routes.SetupRouter(routes.Deps{
		Config:        cfg,
		Board:         board,
		Users:         users,
		Authenticator: auth.NewAuthenticator(tokens, userStore),
		Policy:        policy,
		Guard:         guard,
		TokenTTL:      tokens.TTL(),
		Metrics:       collector,
		Gatherer:      registry,
		Logger:        logger,
		AccessLogger:  accessLogger,
	})

	logger.Info("starting server (graceful)", zap.String("port", cfg.AppPort), zap.String("db", cfg.DBDriver), zap.String("storage", cfg.StorageDriver))
	if err := utils.GraceServer(":"+cfg.AppPort, r, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func buildPolicy(cfg config.AppConfig) (*auth.Policy, error) {
	if len(cfg.PolicyRules) == 0 {
		return auth.DefaultPolicy(), nil
	}
	rules := make([]auth.Rule, 0, len(cfg.PolicyRules))
	for _, pr := range cfg.PolicyRules {
		rule, err := auth.NewRule(pr.Pattern, pr.Methods, pr.Access, pr.Roles)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return auth.NewPolicy(rules...), nil
}

func buildBlobStore(ctx context.Context, cfg config.AppConfig) (storage.BlobStore, error) {
	maxBytes := int64(cfg.UploadMaxMB) * 1024 * 1024
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			MaxBytes:     maxBytes,
		})
	}
	return storage.NewLocalStore(cfg.UploadDir, maxBytes)
}
