package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"learnhub_go/config"
	"learnhub_go/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect initializes the database and Redis connections
func Connect() {
	connectDatabase()
	connectRedis()
}

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "postgres" {
		return postgres.Open(cfg.GetDSN())
	}
	return mysql.Open(cfg.GetDSN())
}

// connectDatabase initializes the database connection
func connectDatabase() {
	var err error

	var gormLogger logger.Interface
	if config.AppConfig.AppEnv == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// Retry for databases that come up after the API (docker compose, tunnels)
	var lastErr error
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = gorm.Open(dialector(config.AppConfig), &gorm.Config{
			Logger:  gormLogger,
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		log.Printf("Database connect attempt %d failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil {
		log.Fatal("Failed to connect to database after retries:", lastErr)
	}

	log.Printf("Database connected successfully (driver=%s)", config.AppConfig.DBDriver)

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	if config.AppConfig.SkipMigrate {
		log.Println("SKIP_MIGRATE=true, skipping auto migration")
		return
	}
	if err := Migrate(DB); err != nil {
		log.Fatal("Auto migration failed:", err)
	}
	log.Println("Database migration completed successfully")
}

// Migrate creates or updates every table. Order follows foreign keys.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ParentStudent{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.ClassSession{},
		&models.Attendance{},
		&models.Content{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.LogArchive{},
	)
}

// connectRedis initializes Redis connection
func connectRedis() {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.AppConfig.RedisHost, config.AppConfig.RedisPort),
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		log.Printf("Redis connection failed: %v", err)
		log.Println("Continuing without Redis - logs, rate limits and notifications fall back to local storage")
		RedisClient = nil
		return
	}

	log.Println("Redis connected successfully")
}

// GetRedisClient returns the Redis client instance
func GetRedisClient() *redis.Client {
	return RedisClient
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database and Redis connections
func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			log.Println("Error closing redis connection:", err)
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		log.Println("Error getting database instance:", err)
		return
	}

	if err = sqlDB.Close(); err != nil {
		log.Println("Error closing database connection:", err)
		return
	}

	log.Println("Database connection closed")
}
