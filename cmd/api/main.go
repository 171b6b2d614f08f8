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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/unioncase/unioncase-api/api/swagger"
	"github.com/unioncase/unioncase-api/internal/handler"
	"github.com/unioncase/unioncase-api/internal/middleware"
	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/internal/repository"
	"github.com/unioncase/unioncase-api/internal/scheduler"
	"github.com/unioncase/unioncase-api/internal/service"
	"github.com/unioncase/unioncase-api/pkg/cache"
	"github.com/unioncase/unioncase-api/pkg/config"
	"github.com/unioncase/unioncase-api/pkg/database"
	"github.com/unioncase/unioncase-api/pkg/jobs"
	"github.com/unioncase/unioncase-api/pkg/logger"
	corsmiddleware "github.com/unioncase/unioncase-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unioncase/unioncase-api/pkg/middleware/requestid"
	"github.com/unioncase/unioncase-api/pkg/storage"
)

// @title UnionCase API
// @version 1.0.0
// @description Grievance case management for postal union stewards and members
// @BasePath /api
// @schemes http https
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		redisClient = nil
	}

	// repositories
	userRepo := repository.NewUserRepository(db)
	grievanceRepo := repository.NewGrievanceRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	statsCache := repository.NewCacheRepository(redisClient, logr)

	// infrastructure
	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	mailer, err := service.NewMailerService(cfg.SMTP, logr)
	if err != nil {
		logr.Fatal("failed to init mailer", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	notifier := service.NewNotifierService(notificationRepo, mailer, logr, service.NotifierConfig{
		ClientURL: cfg.ClientURL,
		Queue: jobs.QueueConfig{
			Workers:    cfg.Notifications.QueueWorkers,
			MaxRetries: cfg.Notifications.QueueMaxRetries,
			RetryDelay: cfg.Notifications.QueueRetryDelay,
			Logger:     logr,
		},
	})

	// services
	trialSvc := service.NewTrialService(userRepo, notificationRepo, notificationRepo, mailer, notifier, logr, service.TrialServiceConfig{
		Duration:          cfg.Trial.Duration,
		FacilityAllowList: cfg.Trial.FacilityAllowList,
		SupportEmail:      cfg.Trial.SupportEmail,
		SupportPhone:      cfg.Trial.SupportPhone,
		ClientURL:         cfg.ClientURL,
		MaxAttempts:       cfg.Notifications.MaxAttempts,
	})
	reminderSvc := service.NewReminderService(deadlineRepo, notificationRepo, notificationRepo, mailer, logr, service.ReminderServiceConfig{
		ClientURL:   cfg.ClientURL,
		MaxAttempts: cfg.Notifications.MaxAttempts,
	})
	authSvc := service.NewAuthService(userRepo, trialSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "unioncase-api",
	})
	grievanceSvc := service.NewGrievanceService(grievanceRepo, userRepo, deadlineRepo, noteRepo, documentRepo, notifier, statsCache, nil, logr, service.GrievanceServiceConfig{
		StatsCacheTTL: cfg.Stats.CacheTTL,
		Metrics:       metrics,
	})
	documentSvc := service.NewDocumentService(documentRepo, grievanceRepo, fileStorage, signer, logr, service.DocumentServiceConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	})
	userSvc := service.NewUserService(userRepo, notificationRepo, nil, logr)
	exportSvc := service.NewExportService(grievanceSvc, logr)

	// background workers
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier.Start(ctx)
	defer notifier.Stop()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(reminderSvc, trialSvc, metrics, logr, cfg.Env, cfg.Scheduler)
		if err := sched.Start(); err != nil {
			logr.Fatal("failed to start sweep scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	grievanceHandler := handler.NewGrievanceHandler(grievanceSvc, exportSvc, metrics)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	userHandler := handler.NewUserHandler(userSvc)
	healthHandler := handler.NewHealthHandler(db, redisClient)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
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
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// signed download links carry their own authorization
	api.GET("/documents/file", documentHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/users/stewards", userHandler.Stewards)
		authed.GET("/users/preferences", userHandler.Preferences)
		authed.PUT("/users/preferences", userHandler.UpdatePreferences)
		authed.GET("/users/notifications", userHandler.Inbox)
		authed.POST("/users/notifications/:id/read", userHandler.MarkNotificationRead)
	}

	gated := api.Group("")
	gated.Use(middleware.JWT(authSvc), middleware.SubscriptionGate(userRepo, logr))
	{
		gated.POST("/grievances", grievanceHandler.Create)
		gated.GET("/grievances", grievanceHandler.List)
		gated.GET("/grievances/statistics", grievanceHandler.Statistics)
		gated.GET("/grievances/export", grievanceHandler.ExportCSV)
		gated.GET("/grievances/:id", grievanceHandler.Get)
		gated.PATCH("/grievances/:id/step", grievanceHandler.UpdateStep)
		gated.PATCH("/grievances/:id/status", grievanceHandler.UpdateStatus)
		gated.POST("/grievances/:id/notes", grievanceHandler.AddNote)
		gated.GET("/grievances/:id/export", grievanceHandler.ExportPDF)
		gated.POST("/grievances/:id/documents", documentHandler.Upload)
		gated.GET("/grievances/:id/documents", documentHandler.List)
		gated.GET("/documents/:id/download", documentHandler.SignedURL)
		gated.DELETE("/documents/:id", documentHandler.Delete)

		gated.PATCH("/deadlines/:id/complete",
			middleware.RequireRoles(models.RoleSteward, models.RoleRepresentative),
			grievanceHandler.CompleteDeadline)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
