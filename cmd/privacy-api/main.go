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

	_ "github.com/sekurigo/privacy-api/api/swagger"
	"github.com/sekurigo/privacy-api/internal/handler"
	"github.com/sekurigo/privacy-api/internal/middleware"
	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/internal/repository"
	"github.com/sekurigo/privacy-api/internal/service"
	"github.com/sekurigo/privacy-api/pkg/cache"
	"github.com/sekurigo/privacy-api/pkg/clock"
	"github.com/sekurigo/privacy-api/pkg/config"
	"github.com/sekurigo/privacy-api/pkg/database"
	"github.com/sekurigo/privacy-api/pkg/logger"
	corsmiddleware "github.com/sekurigo/privacy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sekurigo/privacy-api/pkg/middleware/requestid"
	"github.com/sekurigo/privacy-api/pkg/storage"
)

// @title Privacy Engine API
// @version 1.0.0
// @description Data-subject rights, consent ledger and retention evaluation
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	retry := service.NewRetryPolicy(cfg.Persistence.MaxRetries, cfg.Persistence.RetryInterval)

	// Redis is optional; the dashboard just skips caching without it.
	var cacheSvc *service.CacheService
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	requestRepo := repository.NewRequestRepository(db)
	consentRepo := repository.NewConsentRepository(db)
	retentionRepo := repository.NewRetentionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)

	auditSvc := service.NewAuditService(auditRepo, clk, metricsSvc, logr, cfg.Audit)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	retentionSvc := service.NewRetentionService(retentionRepo, auditSvc, clk, metricsSvc, validate, logr, retry)
	consentSvc := service.NewConsentService(consentRepo, auditSvc, clk, metricsSvc, validate, logr, retry)
	requestSvc := service.NewRequestService(requestRepo, retentionSvc, inventoryRepo, auditSvc, cacheSvc, clk, metricsSvc, validate, logr, retry)
	authSvc := service.NewAuthService(cfg.JWT, logr)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(requestRepo, exportStorage, signer, logr)

	requestHandler := handler.NewRequestHandler(requestSvc)
	consentHandler := handler.NewConsentHandler(consentSvc)
	retentionHandler := handler.NewRetentionHandler(retentionSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reviewer := middleware.RequireRoles(models.RoleAdmin, models.RoleComplianceOfficer)

	privacy := r.Group(cfg.APIPrefix + "/privacy")
	privacy.Use(middleware.JWT(authSvc))
	{
		requests := privacy.Group("/requests")
		{
			requests.POST("", requestHandler.Submit)
			requests.GET("", requestHandler.List)
			requests.GET("/dashboard", reviewer, requestHandler.Dashboard)
			requests.GET("/:id", requestHandler.Get)
			requests.POST("/:id/transition", reviewer, requestHandler.Transition)
			requests.POST("/:id/export", exportHandler.Build)
		}

		consents := privacy.Group("/consents")
		{
			consents.POST("", consentHandler.Record)
			consents.GET("/latest", consentHandler.Latest)
			consents.GET("/valid", consentHandler.Valid)
			consents.GET("/history", consentHandler.History)
			consents.POST("/:id/withdraw", consentHandler.Withdraw)
		}

		retention := privacy.Group("/retention", reviewer)
		{
			retention.POST("/policies", retentionHandler.Register)
			retention.GET("/policies", retentionHandler.List)
			retention.GET("/evaluate", retentionHandler.Evaluate)
			retention.POST("/evaluate", retentionHandler.EvaluateBatch)
		}

		privacy.GET("/audit", reviewer, auditHandler.ListBySubject)
	}

	// Signed tokens carry their own authentication.
	r.GET(cfg.APIPrefix+"/privacy/exports/download", exportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
