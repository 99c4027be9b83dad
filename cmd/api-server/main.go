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

	_ "github.com/procurehub/marketplace-api/api/swagger"
	"github.com/procurehub/marketplace-api/internal/handler"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/internal/repository"
	"github.com/procurehub/marketplace-api/internal/service"
	"github.com/procurehub/marketplace-api/pkg/cache"
	"github.com/procurehub/marketplace-api/pkg/config"
	"github.com/procurehub/marketplace-api/pkg/database"
	"github.com/procurehub/marketplace-api/pkg/logger"
	corsmiddleware "github.com/procurehub/marketplace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/procurehub/marketplace-api/pkg/middleware/requestid"
)

// @title ProcureHub Marketplace API
// @version 1.0.0
// @description Opportunity and proposal workflow for the procurement marketplace
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connect failed", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
	}

	opportunityRepo := repository.NewOpportunityRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var engagementRepo *repository.EngagementRepository
	if cfg.Engagement.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis connect failed", "error", err)
		}
		defer redisClient.Close()
		engagementRepo = repository.NewEngagementRepository(redisClient)
	}

	metricsService := service.NewMetricsService()
	txRunner := repository.NewTxRunner(db, metricsService)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})

	opportunityOpts := []service.OpportunityServiceOption{service.WithOpportunityMetrics(metricsService)}
	if engagementRepo != nil {
		opportunityOpts = append(opportunityOpts, service.WithOpportunityEngagement(engagementRepo, cfg.Engagement.ViewTTL))
	}
	opportunityService := service.NewOpportunityService(
		opportunityRepo, proposalRepo, fileRepo, notificationRepo, userRepo, txRunner,
		nil, logr, opportunityOpts...,
	)
	proposalService := service.NewProposalService(
		proposalRepo, opportunityRepo, fileRepo, notificationRepo, userRepo, txRunner,
		nil, logr, service.WithProposalMetrics(metricsService),
	)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		exportService = service.NewExportService(opportunityRepo, proposalRepo, userRepo, logr)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dispatcher *service.NotificationDispatcher
	if cfg.Notifications.Enabled {
		sender := &service.LogSender{Logger: logr}
		dispatcherCfg := service.DispatcherConfig{
			Workers:      cfg.Notifications.Workers,
			MaxRetries:   cfg.Notifications.MaxRetries,
			RetryDelay:   cfg.Notifications.RetryDelay,
			PollInterval: cfg.Notifications.PollInterval,
			BatchSize:    100,
		}
		if engagementRepo != nil {
			dispatcher = service.NewNotificationDispatcher(notificationRepo, sender, engagementRepo, logr, dispatcherCfg, service.WithDispatcherMetrics(metricsService))
		} else {
			dispatcher = service.NewNotificationDispatcher(notificationRepo, sender, nil, logr, dispatcherCfg, service.WithDispatcherMetrics(metricsService))
		}
		dispatcher.Start(rootCtx)
		defer dispatcher.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	metricsHandler := handler.NewMetricsHandler(metricsService)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", middleware.JWT(authService), middleware.RequireAdmin(), metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authService)
	opportunityHandler := handler.NewOpportunityHandler(opportunityService)
	proposalHandler := handler.NewProposalHandler(proposalService)
	adminHandler := handler.NewAdminHandler(opportunityService, exportService)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Audit(userRepo, logr))

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	opportunities := api.Group("/opportunities")
	opportunities.GET("", middleware.OptionalJWT(authService), opportunityHandler.List)
	opportunities.GET("/:id", middleware.OptionalJWT(authService), opportunityHandler.Get)
	opportunities.POST("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleGovernment), opportunityHandler.Create)
	opportunities.PUT("/:id", middleware.JWT(authService), opportunityHandler.Edit)
	opportunities.POST("/:id/status", middleware.JWT(authService), opportunityHandler.ChangeStatus)
	opportunities.POST("/:id/addenda", middleware.JWT(authService), opportunityHandler.AddAddendum)
	opportunities.POST("/:id/notes", middleware.JWT(authService), opportunityHandler.AddNote)
	opportunities.POST("/:id/watch", middleware.JWT(authService), opportunityHandler.Watch)
	opportunities.DELETE("/:id/watch", middleware.JWT(authService), opportunityHandler.Unwatch)
	opportunities.DELETE("/:id", middleware.JWT(authService), middleware.RequireAdmin(), opportunityHandler.Delete)
	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService)
		opportunities.GET("/:id/award-summary", middleware.JWT(authService), exportHandler.AwardSummary)
	}

	proposals := api.Group("/proposals", middleware.JWT(authService))
	proposals.GET("", proposalHandler.List)
	proposals.GET("/:id", proposalHandler.Get)
	proposals.POST("", middleware.RequireRoles(models.RoleVendor), proposalHandler.Create)
	proposals.PUT("/:id", proposalHandler.Update)
	proposals.POST("/:id/status", proposalHandler.ChangeStatus)
	proposals.POST("/:id/award", middleware.RequireAdmin(), proposalHandler.Award)
	proposals.POST("/:id/score", middleware.RequireAdmin(), proposalHandler.UpdateScore)
	proposals.DELETE("/:id", middleware.RequireAdmin(), proposalHandler.Delete)

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireAdmin())
	admin.POST("/opportunities/close-lapsed", adminHandler.CloseLapsed)
	admin.GET("/metrics", metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
