package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-notice-api/api/swagger"
	"github.com/noah-isme/campus-notice-api/internal/handler"
	"github.com/noah-isme/campus-notice-api/internal/middleware"
	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/internal/repository"
	"github.com/noah-isme/campus-notice-api/internal/service"
	"github.com/noah-isme/campus-notice-api/pkg/cache"
	"github.com/noah-isme/campus-notice-api/pkg/config"
	"github.com/noah-isme/campus-notice-api/pkg/database"
	"github.com/noah-isme/campus-notice-api/pkg/export"
	"github.com/noah-isme/campus-notice-api/pkg/jobs"
	"github.com/noah-isme/campus-notice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-notice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-notice-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-notice-api/pkg/storage"
)

// @title Campus Notice API
// @version 1.0.0
// @description University notice board backend
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The dashboard cache degrades to a no-op without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	backend, err := newUploadBackend(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload backend", "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	auditSvc := service.NewAuditService(auditRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	authSvc := service.NewAuthService(userRepo, roleRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-notice-api",
	})

	reclaimSvc := service.NewReclaimService(backend, logr, jobs.QueueConfig{
		Workers:    cfg.Reclaim.Workers,
		MaxRetries: cfg.Reclaim.MaxRetries,
		RetryDelay: cfg.Reclaim.RetryDelay,
		Logger:     logr,
	})
	reclaimSvc.Start(context.Background())
	defer reclaimSvc.Stop()

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(noticeRepo, userRepo, auditSvc, cacheRepo, logr, cfg.Dashboard.CacheTTL)
	}

	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	noticeSvc := service.NewNoticeService(noticeRepo, roleRepo, backend, auditSvc, reclaimSvc, dashboardSvc, signer, logr, service.NoticeServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	})

	userSvc := service.NewUserService(userRepo, roleRepo, auditSvc, validate, logr)
	roleSvc := service.NewRoleService(roleRepo, validate)
	categorySvc := service.NewCategoryService(categoryRepo, validate)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	noticeHandler := handler.NewNoticeHandler(noticeSvc)
	userHandler := handler.NewUserHandler(userSvc)
	roleHandler := handler.NewRoleHandler(roleSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	notices := api.Group("/notices")
	{
		// Read paths stay open; the visibility policy decides per notice.
		notices.GET("", middleware.OptionalJWT(authSvc), noticeHandler.List)
		notices.GET("/signed-download", noticeHandler.DownloadSigned)
		notices.GET("/:id", middleware.OptionalJWT(authSvc), noticeHandler.Get)
		notices.GET("/:id/download", middleware.OptionalJWT(authSvc), noticeHandler.Download)
		notices.GET("/:id/download-link", middleware.OptionalJWT(authSvc), noticeHandler.DownloadLink)

		publisher := notices.Group("", middleware.JWT(authSvc), middleware.RBAC(userRepo, models.RoleNameAdmin, models.RoleNameTeacher))
		{
			publisher.POST("", noticeHandler.Create)
			publisher.PATCH("/restore", noticeHandler.Restore)
			publisher.DELETE("/permanent", noticeHandler.Purge)
			publisher.GET("/deleted", noticeHandler.ListDeleted)
			publisher.GET("/counts", noticeHandler.Counts)
			publisher.PATCH("/:id", noticeHandler.Update)
			publisher.DELETE("/:id", noticeHandler.SoftDelete)
		}
	}

	categories := api.Group("/categories")
	{
		categories.GET("", categoryHandler.List)

		adminCategories := categories.Group("", middleware.JWT(authSvc), middleware.RBAC(userRepo, models.RoleNameAdmin))
		{
			adminCategories.POST("", categoryHandler.Create)
			adminCategories.PUT("/:id", categoryHandler.Update)
			adminCategories.DELETE("/:id", categoryHandler.Delete)
		}
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.RBAC(userRepo, models.RoleNameAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.PATCH("/users/:id/role", userHandler.ChangeRole)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.GET("/roles", roleHandler.List)
		admin.POST("/roles", roleHandler.Create)
		admin.PUT("/roles/:id", roleHandler.Update)
		admin.DELETE("/roles/:id", roleHandler.Delete)

		admin.GET("/audit-logs", auditHandler.List)
		admin.GET("/audit-logs/export", auditHandler.Export)

		if dashboardSvc != nil {
			admin.GET("/admin/dashboard", dashboardHandler.Get)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

func newUploadBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Uploads.Backend {
	case config.UploadBackendCloudinary:
		return storage.NewCloudinaryBackend(cfg.Uploads.CloudinaryFolder)
	default:
		return storage.NewLocalBackend(cfg.Uploads.StorageDir, cfg.Uploads.ArchiveDir)
	}
}
