package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"learnhub_go/config"
	"learnhub_go/controllers"
	"learnhub_go/database"
	"learnhub_go/database/seeders"
	"learnhub_go/middleware"
	"learnhub_go/routes"
	"learnhub_go/services"
	"learnhub_go/services/notifications"
	"learnhub_go/services/websocket"
	"learnhub_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

var startedAt = time.Now()

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging(config.AppConfig)

	// Connect to database (migrates unless SKIP_MIGRATE=true)
	database.Connect()

	if config.AppConfig.SeedDB {
		seeders.SeedAll(database.DB)
	}
}

func main() {
	cfg := config.AppConfig
	db := database.DB
	rdb := database.GetRedisClient()
	stop := make(chan struct{})

	// Create WebSocket hub first
	wsHub := websocket.NewHub()
	go wsHub.Run(stop)

	lineService, err := services.NewLineMessagingService(cfg.LineChannelSecret, cfg.LineChannelAccessToken)
	if err != nil {
		log.Fatal("Failed to initialize LINE client:", err)
	}

	// Wire notifications to the hub globally so every Service uses it (incl. schedulers)
	notifications.SetDefaultWSHub(wsHub)
	if lineService.Enabled() {
		notifications.SetDefaultLinePusher(lineService)
	}
	notifService := notifications.NewService()
	if cfg.UseRedisNotifications {
		notifService.StartWorker(stop)
	}

	var (
		files       controllers.ContentFileStore
		bucketProbe services.ProbeFunc
	)
	if cfg.S3BucketName != "" {
		contentStore, err := storage.NewStorageService(cfg)
		if err != nil {
			logrus.WithError(err).Warn("content uploads disabled")
		} else {
			files = contentStore
			bucketProbe = contentStore.Ping
		}
	}

	var archives services.ArchiveStore
	if cfg.S3BucketName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archiveStore, err := services.NewS3ArchiveStore(ctx, cfg.AWSRegion, cfg.S3BucketName)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("log archiving disabled")
		} else {
			archives = archiveStore
		}
	}
	logService := services.NewLogArchiveService(db, rdb, archives)

	healthService := services.NewHealthService(db, rdb, cfg, wsHub)
	healthService.SetVersion(version)
	healthService.SetStartTime(startedAt)
	healthService.AddProbe("s3", services.StatusDegraded, services.OptionalProbe(bucketProbe))

	scheduleManager := services.NewScheduleManager(
		services.NewNotificationScheduler(db, notifService),
		logService,
		cfg.LogArchiveDays,
	)
	if err := scheduleManager.Start(); err != nil {
		log.Fatal("Failed to start schedule manager:", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Learnhub API " + version,
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Custom middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.GlobalRateLimiter(cfg, rdb))
	app.Use(middleware.LogActivityMiddleware())

	routes.SetupRoutes(app, routes.Deps{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		Hub:           wsHub,
		Notifications: notifService,
		Files:         files,
		Logs:          logService,
		Health:        healthService,
		Line:          lineService,
		LineLinks:     services.NewLineLinkService(db, rdb),
	})

	// 404 handler
	app.Use(routes.NotFound)

	go func() {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{
			"addr":    addr,
			"env":     cfg.AppEnv,
			"version": version,
		}).Info("server starting")
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	scheduleManager.Stop(ctx)
	close(stop)
	database.Close()
	logrus.Info("server stopped")
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Log to stdout in development, to LOG_FILE otherwise
	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}
