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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/elevated-trades/apprentice-api/api/swagger"
	"github.com/elevated-trades/apprentice-api/internal/handler"
	"github.com/elevated-trades/apprentice-api/internal/middleware"
	"github.com/elevated-trades/apprentice-api/internal/models"
	"github.com/elevated-trades/apprentice-api/internal/repository"
	"github.com/elevated-trades/apprentice-api/internal/service"
	"github.com/elevated-trades/apprentice-api/pkg/cache"
	"github.com/elevated-trades/apprentice-api/pkg/config"
	"github.com/elevated-trades/apprentice-api/pkg/database"
	"github.com/elevated-trades/apprentice-api/pkg/jobs"
	"github.com/elevated-trades/apprentice-api/pkg/logger"
	corsmiddleware "github.com/elevated-trades/apprentice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/elevated-trades/apprentice-api/pkg/middleware/requestid"
	"github.com/elevated-trades/apprentice-api/pkg/storage"
)

// @title Apprentice Program API
// @version 1.0.0
// @description Enrollment, document verification and license entitlement service for trade apprenticeship programs
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, license cache disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	licenseRepo := repository.NewLicenseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.Config{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "apprentice-api",
		Audience:           []string{"apprentice-portal"},
	})
	documentSvc := service.NewDocumentService(documentRepo, nil, logr, cfg.Documents.AllowedMIMEs, cfg.Documents.MaxFileSizeBytes)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, documentSvc, notificationSvc, nil, logr)
	accessSvc := service.NewAccessService(enrollmentRepo, logr)
	licenseSvc := service.NewLicenseService(licenseRepo, userRepo, redisClient, logr, cfg.License.CacheTTL, cfg.License.Enforce)
	exportSvc := service.NewExportService(enrollmentRepo, userRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	accessHandler := handler.NewAccessHandler(accessSvc, metricsSvc, cfg.Programs.DefaultSlug)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, exportSvc, cfg.Programs.DefaultSlug)
	documentHandler := handler.NewDocumentHandler(documentSvc, metricsSvc, store, signer)
	licenseHandler := handler.NewLicenseHandler(licenseSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	access := authed.Group("/access")
	{
		access.GET("", accessHandler.Resolve)
		access.GET("/:userId", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), accessHandler.ResolveForUser)
	}

	enrollments := authed.Group("/enrollments")
	enrollments.Use(middleware.RequireLicense(licenseSvc))
	{
		enrollments.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.List)
		enrollments.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
			middleware.RequireFeature(licenseSvc, models.FeatureReports), enrollmentHandler.ExportCSV)
		enrollments.POST("", middleware.Audit(userRepo, models.AuditActionEnrollmentApply, "enrollments"), enrollmentHandler.Apply)
		enrollments.GET("/current", enrollmentHandler.Current)
		enrollments.POST("/agreement/sign", enrollmentHandler.SignAgreement)
		enrollments.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.Get)
		enrollments.POST("/:id/confirm-payment", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.ConfirmPayment)
		enrollments.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
			middleware.Audit(userRepo, models.AuditActionEnrollmentApprove, "enrollments"), enrollmentHandler.Approve)
		enrollments.POST("/:id/pause", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.Pause)
		enrollments.POST("/:id/resume", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.Resume)
		enrollments.POST("/:id/withdraw", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.Withdraw)
		enrollments.POST("/:id/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), enrollmentHandler.Complete)
		enrollments.GET("/:id/certificate", enrollmentHandler.Certificate)
	}

	documents := authed.Group("/documents")
	documents.Use(middleware.RequireFeature(licenseSvc, models.FeatureDocuments))
	{
		documents.POST("", enforceUploadLimit(cfg.Documents.MaxFileSizeBytes), documentHandler.Upload)
		documents.GET("", documentHandler.List)
		documents.GET("/status", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), documentHandler.Status)
		documents.GET("/download", documentHandler.Download)
		documents.GET("/:id/download-url", documentHandler.DownloadURL)
		documents.POST("/:id/verify", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
			middleware.Audit(userRepo, models.AuditActionDocumentVerify, "documents"), documentHandler.Verify)
		documents.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
			middleware.Audit(userRepo, models.AuditActionDocumentReject, "documents"), documentHandler.Reject)

		gates := documents.Group("/gates", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		gates.GET("/transfer/:userId", documentHandler.TransferGate)
		gates.GET("/exam/:userId", documentHandler.ExamGate)
		gates.GET("/ce/:userId", documentHandler.CEGate)
		gates.GET("/match/:userId", documentHandler.MatchGate)
		gates.GET("/shop/:shopId", documentHandler.ShopGate)
	}

	license := authed.Group("/license")
	{
		license.GET("", licenseHandler.Current)
		license.GET("/validate", licenseHandler.Validate)
		license.GET("/features/:feature", licenseHandler.Feature)
		license.GET("/limits/:resource", licenseHandler.CheckLimit)
		license.POST("/:tenantId/suspend", middleware.RequireRoles(models.RoleSuperAdmin),
			middleware.Audit(userRepo, models.AuditActionLicenseChange, "licenses"), licenseHandler.Suspend)
		license.POST("/:tenantId/restore", middleware.RequireRoles(models.RoleSuperAdmin),
			middleware.Audit(userRepo, models.AuditActionLicenseChange, "licenses"), licenseHandler.Restore)
	}

	authed.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleSuperAdmin), metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func enforceUploadLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
