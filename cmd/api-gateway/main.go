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

	_ "github.com/classdesk/attendance-api/api/swagger"
	"github.com/classdesk/attendance-api/internal/handler"
	"github.com/classdesk/attendance-api/internal/middleware"
	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/notify"
	"github.com/classdesk/attendance-api/internal/repository"
	"github.com/classdesk/attendance-api/internal/service"
	"github.com/classdesk/attendance-api/pkg/cache"
	"github.com/classdesk/attendance-api/pkg/config"
	"github.com/classdesk/attendance-api/pkg/database"
	"github.com/classdesk/attendance-api/pkg/logger"
	corsmiddleware "github.com/classdesk/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classdesk/attendance-api/pkg/middleware/requestid"
	"github.com/classdesk/attendance-api/pkg/storage"
)

// @title ClassDesk Attendance API
// @version 1.0.0
// @description Attendance and roster synchronization service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The snapshot mirror and change feed degrade gracefully without
		// Redis; reads just lose their fallback.
		logr.Sugar().Warnw("redis unavailable, snapshot fallback disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(redisClient, cfg.Snapshot.KeyPrefix, cfg.Snapshot.TTL, logr)

	// Change feed: Redis pub/sub when available, in-process otherwise.
	var broker notify.Broker
	if cfg.Changefeed.Enabled && redisClient != nil {
		broker = notify.NewRedisBroker(redisClient, cfg.Changefeed.ChannelPrefix, logr)
	} else {
		broker = notify.NewInMemoryBroker()
	}
	publisher := notify.NewQueuedPublisher(broker, cfg.Changefeed.QueueWorkers, logr)
	publisher.Start(ctx)
	defer publisher.Stop()

	manager := notify.NewSubscriptionManager(broker, logr)
	defer manager.Stop()

	// Services.
	authService := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	rosterService := service.NewRosterService(rosterRepo, cfg.Roster.FallbackEnabled, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, snapshotRepo, publisher, metrics, validate, logr)
	viewService := service.NewCourseViewService(rosterService, attendanceService, logr)

	var exportService *service.ExportService
	if cfg.Export.Enabled {
		files, err := storage.NewLocalStorage(cfg.Export.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
		exportService = service.NewExportService(rosterService, attendanceService, files, signer, logr)
		go exportService.CleanupLoop(ctx, cfg.Export.CleanupInterval, cfg.Export.SignedURLTTL)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	rosterHandler := handler.NewRosterHandler(rosterService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, exportService)
	viewHandler := handler.NewCourseViewHandler(viewService)
	eventsHandler := handler.NewEventsHandler(manager, viewService, metrics, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.New())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// Downloads authenticate with the signed token embedded in the URL.
	api.GET("/reports/download", attendanceHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/events", eventsHandler.Stream)

	courses := authed.Group("/courses/:id")
	courses.GET("/roster", rosterHandler.ByCourse)
	courses.GET("/attendance", attendanceHandler.ByDate)
	courses.GET("/attendance/dates", attendanceHandler.MarkedDates)
	courses.GET("/attendance/overview", viewHandler.Overview)

	staff := middleware.RequireRoles(string(models.RoleAdmin), string(models.RoleInstructor))
	courses.POST("/attendance", staff, attendanceHandler.MarkOne)
	courses.POST("/attendance/bulk", staff, attendanceHandler.MarkBulk)
	courses.POST("/attendance/overview/mark", staff, viewHandler.Mark)
	courses.POST("/attendance/overview/history", staff, viewHandler.History)
	courses.GET("/attendance/export", staff, attendanceHandler.Export)

	authed.GET("/students/:id/attendance",
		middleware.RequireRoles(string(models.RoleAdmin), string(models.RoleInstructor), "SELF"),
		attendanceHandler.ByStudent)

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
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
}
