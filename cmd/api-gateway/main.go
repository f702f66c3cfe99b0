package main

import (
	"context"
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

	_ "github.com/noah-isme/practicas-api/api/swagger"
	"github.com/noah-isme/practicas-api/internal/handler"
	"github.com/noah-isme/practicas-api/internal/middleware"
	"github.com/noah-isme/practicas-api/internal/models"
	"github.com/noah-isme/practicas-api/internal/repository"
	"github.com/noah-isme/practicas-api/internal/service"
	"github.com/noah-isme/practicas-api/pkg/cache"
	"github.com/noah-isme/practicas-api/pkg/config"
	"github.com/noah-isme/practicas-api/pkg/database"
	"github.com/noah-isme/practicas-api/pkg/export"
	"github.com/noah-isme/practicas-api/pkg/jobs"
	"github.com/noah-isme/practicas-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/practicas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/practicas-api/pkg/middleware/requestid"
	"github.com/noah-isme/practicas-api/pkg/storage"
)

// @title Practicas API
// @version 1.0.0
// @description Internship and social service documentation portal
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	fileStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TemplateTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	processRepo := repository.NewProcessRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditService := service.NewAuditService(userRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
	})
	auditService.Start(ctx)
	defer auditService.Stop()

	authService := service.NewAuthService(userRepo, auditService, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "practicas-api",
	})

	periodService := service.NewPeriodService(periodRepo, auditService, validate, logr)

	templateService := service.NewTemplateService(templateRepo, fileStore, cacheService, auditService, logr, service.TemplateServiceConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		CacheTTL:         cfg.Cache.TemplateTTL,
	})

	documentService := service.NewDocumentService(documentRepo, processRepo, templateRepo, fileStore, cacheService, auditService, logr, service.DocumentServiceConfig{
		EnforceTemplateGate: cfg.Submissions.EnforceTemplateGate,
		MaxFileSizeBytes:    cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:        cfg.Uploads.AllowedMIMEs,
		CacheTTL:            cfg.Cache.TemplateTTL,
	})

	processService := service.NewProcessService(processRepo, periodRepo, documentRepo, export.NewPDFExporter(), logr)

	lifecycleService := service.NewLifecycleService(periodRepo, templateRepo, cacheService, metrics, logr, service.LifecycleServiceConfig{
		Interval:    cfg.Lifecycle.Interval,
		GraceWindow: cfg.Lifecycle.GraceWindow,
		RunTimeout:  cfg.Lifecycle.RunTimeout,
	})
	if cfg.Lifecycle.Enabled {
		lifecycleService.Start(ctx)
	}

	authHandler := handler.NewAuthHandler(authService)
	periodHandler := handler.NewPeriodHandler(periodService)
	templateHandler := handler.NewTemplateHandler(templateService)
	documentHandler := handler.NewDocumentHandler(documentService)
	processHandler := handler.NewProcessHandler(processService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	adminRoles := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)

	periods := api.Group("/periods", middleware.JWT(authService))
	{
		periods.GET("", periodHandler.List)
		periods.GET("/current", periodHandler.Current)
		periods.GET("/:id", periodHandler.Get)
		periods.POST("", adminRoles, middleware.Audit(auditService, models.AuditActionPeriodCreate, "period"), periodHandler.Create)
		periods.PUT("/:id", adminRoles, middleware.Audit(auditService, models.AuditActionPeriodUpdate, "period"), periodHandler.Update)
		periods.DELETE("/:id", adminRoles, periodHandler.Delete)
	}

	templates := api.Group("/templates", middleware.JWT(authService))
	{
		templates.GET("", templateHandler.List)
		templates.GET("/:name", templateHandler.Get)
		templates.PUT("/:name/file", adminRoles, templateHandler.Upload)
		templates.PUT("/:name/status", adminRoles, templateHandler.SetStatus)
		templates.DELETE("/:name", adminRoles, templateHandler.Delete)
	}

	processes := api.Group("/processes", middleware.JWT(authService))
	{
		processes.GET("", processHandler.ListMine)
		processes.POST("", processHandler.Create)
		processes.GET("/:id", processHandler.Get)
		processes.GET("/:id/documents", documentHandler.ListByProcess)
		processes.GET("/:id/checklist", processHandler.Checklist)
	}

	documents := api.Group("/documents", middleware.JWT(authService))
	{
		documents.POST("", documentHandler.Submit)
		documents.GET("/:id", documentHandler.Get)
		documents.PUT("/:id/approve", adminRoles, documentHandler.Approve)
		documents.PUT("/:id/reject", adminRoles, documentHandler.Reject)
		documents.DELETE("/:id", documentHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
