package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title Timetable Conflict API
// @version 0.1.0
// @description Multi-tab timetable editing with conflict detection and resolution
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	layout, err := layoutFromConfig(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid scheduler layout", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TimetableTTL, logr, cfg.Cache.Enabled)

	timetableRepo := repository.NewTimetableRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	store := service.NewTimetableStore(timetableRepo, cacheSvc, cfg.Cache.TimetableTTL, logr)
	refs := service.NewReferenceService(referenceRepo, cacheSvc, cfg.Cache.ReferenceTTL, validate, logr)
	cross := service.NewCrossTimetableService(store, metricsSvc, validate, logr)

	audit := service.NewAuditService(auditRepo, metricsSvc, logr, cfg.Audit.Enabled)
	auditQueue := jobs.NewQueue("audit", audit.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	audit.UseQueue(auditQueue)
	auditQueue.Start(ctx)
	defer auditQueue.Stop()

	sessions := service.NewSessionService(service.SessionConfig{
		Layout: layout,
		Thresholds: scheduler.Thresholds{
			CriticalRatio: cfg.Scheduler.CapacityCriticalRatio,
			WarningRatio:  cfg.Scheduler.CapacityWarningRatio,
		},
		MaxAlternativeSlots: cfg.Scheduler.MaxAlternativeSlots,
		HistoryLimit:        cfg.Scheduler.HistoryLimit,
		CrossCheckTimeout:   cfg.Scheduler.CrossCheckTimeout,
	}, refs, store, cross, audit, metricsSvc, validate, logr)

	tabHandler := handler.NewTabHandler(sessions)
	timetableHandler := handler.NewTimetableHandler(refs, audit, cross)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": handler.PingerFunc(db.PingContext),
		"redis":    cacheRepo,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(internalmiddleware.Actor())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.CORS.MaxAge))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/reference", timetableHandler.Reference)
	api.POST("/reference/refresh", timetableHandler.RefreshReference)
	api.GET("/timetables/:key/audit", timetableHandler.AuditTrail)
	api.POST("/conflicts/cross-check", timetableHandler.CrossCheck)

	tabs := api.Group("/tabs")
	tabs.POST("", tabHandler.Create)
	tabs.GET("", tabHandler.List)
	tabs.POST("/open", tabHandler.Open)
	tabs.GET("/:id", tabHandler.Get)
	tabs.DELETE("/:id", tabHandler.Close)
	tabs.POST("/:id/activate", tabHandler.Activate)
	tabs.PATCH("/:id/filters", tabHandler.Configure)
	tabs.POST("/:id/validate", tabHandler.Validate)
	tabs.POST("/:id/placements", tabHandler.Place)
	tabs.DELETE("/:id/placements", tabHandler.Remove)
	tabs.POST("/:id/moves", tabHandler.Move)
	tabs.POST("/:id/undo", tabHandler.Undo)
	tabs.POST("/:id/redo", tabHandler.Redo)
	tabs.GET("/:id/conflicts", tabHandler.Conflicts)
	tabs.POST("/:id/suggestions", tabHandler.Suggest)
	tabs.POST("/:id/suggestions/apply", tabHandler.ApplySuggestion)
	tabs.POST("/:id/clear", tabHandler.ClearWeek)
	tabs.POST("/:id/save", tabHandler.Save)

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

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func layoutFromConfig(cfg config.SchedulerConfig) (*scheduler.Layout, error) {
	if len(cfg.Days) == 0 || len(cfg.TimeSlots) == 0 {
		return scheduler.DefaultLayout(), nil
	}
	days := make([]scheduler.Day, 0, len(cfg.Days))
	for _, d := range cfg.Days {
		days = append(days, scheduler.Day(d))
	}
	slots := make([]scheduler.TimeSlot, 0, len(cfg.TimeSlots))
	for _, s := range cfg.TimeSlots {
		slots = append(slots, scheduler.TimeSlot(s))
	}
	return scheduler.NewLayout(days, slots)
}
