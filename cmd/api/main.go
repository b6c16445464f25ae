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

	_ "github.com/noah-isme/lms-enroll-api/api/swagger"
	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/handler"
	"github.com/noah-isme/lms-enroll-api/internal/middleware"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	"github.com/noah-isme/lms-enroll-api/internal/repository"
	"github.com/noah-isme/lms-enroll-api/internal/service"
	"github.com/noah-isme/lms-enroll-api/pkg/cache"
	"github.com/noah-isme/lms-enroll-api/pkg/config"
	"github.com/noah-isme/lms-enroll-api/pkg/database"
	"github.com/noah-isme/lms-enroll-api/pkg/jobs"
	"github.com/noah-isme/lms-enroll-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-enroll-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-enroll-api/pkg/storage"
)

// @title LMS Enrollment API
// @version 1.0.0
// @description Enrollment and course-content aggregation service
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
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	fileRepo := repository.NewFileRepository(db, cacheRepo, metricsSvc, cfg.Cache.FileTTL, logr)

	expander := graph.NewExpander(graph.Sources{
		Lectures:    lectureRepo,
		Quizzes:     quizRepo,
		Assignments: assignmentRepo,
		Files:       fileRepo,
	}, logr)

	mediaSigner := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)
	views := service.NewViewBuilder(mediaSigner, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, reviewRepo, expander, views, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		artifactStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("export storage unavailable", "error", err)
		}
		exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(enrollmentRepo, courseRepo, reviewRepo, expander, artifactStore, exportSigner, logr)
		exportQueue = jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		exportSvc.UseQueue(exportQueue)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	healthHandler := handler.NewHealthHandler(db)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, logr)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	enrollments := api.Group("/enrollments")
	enrollments.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RoleStudent), enrollmentHandler.List)
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Create)
	enrollments.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RoleStudent), enrollmentHandler.Detail)
	enrollments.POST("/:id/lectures/:lectureId/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.CompleteLecture)
	enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Delete)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		enrollments.POST("/exports", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), exportHandler.Create)
		enrollments.GET("/exports/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), exportHandler.Get)
		// Download links are pre-authorized through the signed token.
		r.GET(cfg.APIPrefix+"/downloads", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
