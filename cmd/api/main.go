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

	_ "github.com/noah-isme/gms-api/api/swagger"
	"github.com/noah-isme/gms-api/internal/handler"
	"github.com/noah-isme/gms-api/internal/middleware"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/internal/repository"
	"github.com/noah-isme/gms-api/internal/service"
	"github.com/noah-isme/gms-api/pkg/cache"
	"github.com/noah-isme/gms-api/pkg/config"
	"github.com/noah-isme/gms-api/pkg/database"
	"github.com/noah-isme/gms-api/pkg/jobs"
	"github.com/noah-isme/gms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gms-api/pkg/middleware/requestid"
	"github.com/noah-isme/gms-api/pkg/storage"
)

// @title Graduation Management API
// @version 1.0.0
// @description Backend for graduation applications, sequential review, issuance and statistics
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, statistics cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	issuanceRepo := repository.NewIssuanceRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	statsService := service.NewStatsService(statsRepo, cacheRepo, metricsService, cfg.Stats.CacheTTL, logr)
	notificationService := service.NewNotificationService(notifRepo, userRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
	}, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	applicationService := service.NewApplicationService(appRepo, docRepo, academicRepo, userRepo, userRepo, notificationService, validate, logr, cfg.Eligibility)
	approvalService := service.NewApprovalService(appRepo, userRepo, userRepo, notificationService, statsService, metricsService, validate, logr)
	documentService := service.NewDocumentService(docRepo, appRepo, store, signer, userRepo, validate, logr, cfg.Documents)
	issuanceService := service.NewIssuanceService(issuanceRepo, appRepo, userRepo, userRepo, notificationService, statsService, validate, logr)

	queueCtx, stopQueue := context.WithCancel(context.Background())
	notificationService.Start(queueCtx)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	applicationHandler := handler.NewApplicationHandler(applicationService)
	reviewHandler := handler.NewReviewHandler(approvalService)
	documentHandler := handler.NewDocumentHandler(documentService)
	issuanceHandler := handler.NewIssuanceHandler(issuanceService)
	statsHandler := handler.NewStatsHandler(statsService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
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

		authed := auth.Group("")
		authed.Use(middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	graduation := api.Group("/graduation")
	graduation.Use(middleware.JWT(authService))
	{
		request := graduation.Group("/request")
		{
			student := request.Group("")
			student.Use(middleware.RequireRoles(models.RoleStudent))
			student.GET("/me", applicationHandler.Me)
			student.POST("", middleware.Audit(userRepo, "UPSERT", "graduation_application"), applicationHandler.Upsert)
			student.POST("/:id/finalize", middleware.Audit(userRepo, "FINALIZE", "graduation_application"), applicationHandler.Finalize)
			student.POST("/:id/termination-form", middleware.Audit(userRepo, "TERMINATION_FORM", "graduation_application"), applicationHandler.TerminationForm)
			student.POST("/:id/ceremony", middleware.Audit(userRepo, "CEREMONY", "graduation_application"), applicationHandler.Ceremony)
			student.POST("/document", documentHandler.Upload)

			request.GET("/:id", applicationHandler.Get)
			request.GET("/:id/documents", documentHandler.List)
			request.GET("/:id/capabilities", reviewHandler.Capabilities)
		}

		review := graduation.Group("")
		review.Use(middleware.RequireRoles(models.RoleAdvisor, models.RoleSecretary, models.RoleDean))
		{
			review.GET("/requests/pending", reviewHandler.Pending)
			review.POST("/request/:id/review", middleware.Audit(userRepo, "REVIEW", "graduation_application"), reviewHandler.Review)

			// Aliases under /review for the same operations.
			legacy := review.Group("/review")
			legacy.GET("/pending", reviewHandler.Pending)
			legacy.POST("/bulk", middleware.Audit(userRepo, "BULK_REVIEW", "graduation_application"), reviewHandler.BulkReview)
			legacy.POST("/:id", middleware.Audit(userRepo, "REVIEW", "graduation_application"), reviewHandler.Review)
		}

		documents := graduation.Group("/documents")
		{
			documents.POST("/:id/verify", middleware.RequireRoles(models.RoleSecretary), documentHandler.Verify)
			documents.GET("/:id/url", documentHandler.DownloadURL)
		}
	}

	// Signed-token downloads authenticate through the token itself.
	api.GET("/graduation/documents/download", documentHandler.Download)

	issuance := api.Group("/issuance")
	issuance.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleStudentAffairs))
	{
		issuance.POST("/applications/:id/finalize", middleware.Audit(userRepo, "ISSUANCE_FINALIZE", "graduation_application"), issuanceHandler.Finalize)
		issuance.GET("/diplomas", issuanceHandler.ListDiplomas)
		issuance.GET("/certificates", issuanceHandler.ListCertificates)
		issuance.POST("/diplomas/:id/advance", middleware.Audit(userRepo, "ADVANCE", "diploma_request"), issuanceHandler.AdvanceDiploma)
		issuance.POST("/certificates/:id/advance", middleware.Audit(userRepo, "ADVANCE", "certificate_request"), issuanceHandler.AdvanceCertificate)
		issuance.POST("/diplomas/:id/appointment/request", issuanceHandler.RequestAppointment)
		issuance.POST("/diplomas/:id/appointment/schedule", issuanceHandler.ScheduleAppointment)
		issuance.POST("/diplomas/:id/appointment/complete", issuanceHandler.CompleteAppointment)
	}

	statistics := api.Group("/statistics")
	statistics.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleStudentAffairs, models.RoleDean))
	{
		statistics.GET("/graduation", statsHandler.Overview)
		statistics.GET("/graduation/export", statsHandler.Export)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.JWT(authService))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	stopQueue()
	notificationService.Stop()
	logr.Sugar().Infow("server stopped")
}
