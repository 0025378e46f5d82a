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

	_ "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/api/swagger"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/handler"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/middleware"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/repository"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/service"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/cache"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/config"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/database"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/logger"
	corsmiddleware "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/middleware/requestid"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/storage"
)

// @title Data Rhythm Academy API
// @version 1.0.0
// @description Live-class scheduling, enrollment progress and calendar API
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
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, running without cache and cross-instance feed", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	feed := service.NewClassFeed(func(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
		return classRepo.ListUpcoming(ctx, courseID, time.Now().UTC())
	}, redisClient, cfg.LiveClass.FeedChannel, logr)
	feed.SetMetrics(metricsSvc)
	// Cached calendars embed class rows, so any schedule change drops them.
	feed.OnChange(func(ctx context.Context, courseID string) {
		if err := cacheRepo.DeleteByPattern(ctx, "calendar:inputs:*"); err != nil {
			sugar.Warnw("calendar cache invalidation failed", "course_id", courseID, "error", err)
		}
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "data-rhythm-academy",
	})
	courseSvc := service.NewCourseService(courseRepo, userRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	scheduleSvc := service.NewScheduleService(classRepo, courseRepo, enrollmentRepo, userRepo, feed, cfg.LiveClass.JoinWindow, validate, logr)
	scheduleSvc.SetMetrics(metricsSvc)

	certStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init certificate storage", "error", err)
	}
	certSigner := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	certSvc := service.NewCertificateService(enrollmentRepo, courseRepo, userRepo, certStore, certSigner, service.CertificateConfig{
		WorkerConcurrency: cfg.Certificates.WorkerConcurrency,
		WorkerRetries:     cfg.Certificates.WorkerRetries,
	}, logr)

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, classRepo, certSvc, cfg.Payments.Bypass, validate, logr)
	enrollmentSvc.SetMetrics(metricsSvc)
	calendarSvc := service.NewCalendarService(enrollmentRepo, courseRepo, classRepo, cacheRepo, cfg.LiveClass.JoinWindow, cfg.Catalog.CacheTTL, logr)

	reconciler := service.NewStatusReconciler(classRepo, feed, logr)
	reconciler.SetMetrics(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go feed.Run(ctx)
	certSvc.Start(ctx)
	defer certSvc.Stop()
	if err := reconciler.Start(cfg.LiveClass.ReconcileSchedule); err != nil {
		sugar.Fatalw("failed to start status reconciler", "error", err)
	}
	defer reconciler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Courses:      handler.NewCourseHandler(courseSvc),
		Schedule:     handler.NewScheduleHandler(scheduleSvc, feed, cfg.LiveClass.UpcomingLimit),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Calendar:     handler.NewCalendarHandler(calendarSvc),
		Certificates: handler.NewCertificateHandler(certSvc),
		AuthService:  authSvc,
		Metrics:      metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server shutdown failed", "error", err)
	}
}
