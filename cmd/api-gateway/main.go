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

	_ "github.com/noah-isme/sma-pickup-api/api/swagger"
	"github.com/noah-isme/sma-pickup-api/internal/handler"
	"github.com/noah-isme/sma-pickup-api/internal/middleware"
	"github.com/noah-isme/sma-pickup-api/internal/realtime"
	"github.com/noah-isme/sma-pickup-api/internal/repository"
	"github.com/noah-isme/sma-pickup-api/internal/service"
	"github.com/noah-isme/sma-pickup-api/pkg/cache"
	"github.com/noah-isme/sma-pickup-api/pkg/config"
	"github.com/noah-isme/sma-pickup-api/pkg/database"
	"github.com/noah-isme/sma-pickup-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-pickup-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-pickup-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-pickup-api/pkg/scheduler"
)

// @title SMA Pickup API
// @version 1.0.0
// @description Reception pickup notifications for classroom displays
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Stats caching degrades gracefully without Redis.
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	pickupRepo := repository.NewPickupRepository(db)
	mergeRepo := repository.NewMergeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	registry := realtime.NewRegistry(cfg.Realtime.HeartbeatInterval, metricsSvc, logr)
	router := realtime.NewRouter(registry, mergeRepo, pickupRepo, logr)
	go registry.Run(ctx)

	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	pickupSvc := service.NewPickupService(pickupRepo, studentRepo, mergeRepo, router, cacheRepo, validate, logr)
	mergeSvc := service.NewMergeService(mergeRepo, router, validate, logr)
	displaySvc := service.NewDisplayService(registry, pickupSvc, mergeRepo, logr)
	statsSvc := service.NewStatsService(pickupRepo, cacheRepo, cfg.Stats.CacheTTL, logr)
	exportSvc := service.NewExportService(pickupRepo, logr)

	sched := scheduler.New(logr)
	sched.AddDaily("merge-reset", cfg.Merges.ResetHour, func(ctx context.Context) error {
		_, err := mergeSvc.ClearAll(ctx)
		return err
	})
	sched.AddDaily("pickup-purge", cfg.Retention.PurgeHour, func(ctx context.Context) error {
		_, err := pickupSvc.PurgeAcknowledged(ctx, cfg.Retention.Window)
		return err
	})
	sched.Start(ctx)
	defer sched.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	displayHandler := handler.NewDisplayHandler(displaySvc, cfg.Realtime, logr)
	r.GET("/ws/display", displayHandler.Serve)

	api := r.Group(cfg.APIPrefix)

	studentHandler := handler.NewStudentHandler(studentSvc)
	api.GET("/students", studentHandler.List)
	api.POST("/students", studentHandler.Create)
	api.POST("/students/batch", studentHandler.BatchCreate)
	api.GET("/students/:id", studentHandler.Get)
	api.PUT("/students/:id", studentHandler.Update)
	api.DELETE("/students/:id", studentHandler.Delete)

	pickupHandler := handler.NewPickupHandler(pickupSvc, statsSvc, exportSvc)
	api.GET("/pickups", pickupHandler.History)
	api.POST("/pickups", pickupHandler.Raise)
	api.GET("/pickups/pending", pickupHandler.Pending)
	api.GET("/pickups/display", pickupHandler.Display)
	api.GET("/pickups/stats", pickupHandler.Stats)
	api.POST("/pickups/:id/acknowledge", pickupHandler.Acknowledge)
	if cfg.Exports.Enabled {
		api.GET("/pickups/export", pickupHandler.Export)
	}

	mergeHandler := handler.NewMergeHandler(mergeSvc)
	api.GET("/merges", mergeHandler.List)
	api.POST("/merges", mergeHandler.Create)
	api.POST("/merges/reset", mergeHandler.Reset)
	api.DELETE("/merges/:year/:className", mergeHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	registry.Shutdown()
}
