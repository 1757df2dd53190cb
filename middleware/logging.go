package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"learnhub_go/database"
	"learnhub_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	logCacheTTL = 24 * time.Hour
	// must match services.LogQueueKey
	logQueueKey = "logs:queue"
)

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler has not written the response yet
			if code := statusFromError(err); code != 0 {
				status = code
			}
		}

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"request_id": RequestIDFromCtx(c),
		})
		if status >= fiber.StatusInternalServerError {
			entry.Warn("HTTP Request")
		} else {
			entry.Info("HTTP Request")
		}
		return err
	}
}

// LogActivity records an audit entry for the current request. The entry is
// cached in Redis and flushed to the database later; without Redis it is
// written directly.
func LogActivity(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	var userID uint
	if user, err := GetCurrentUser(c); err == nil {
		userID = user.ID
	}

	// request strings are only valid until the handler returns and the entry
	// is written from another goroutine, so every string is copied
	activityLog := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   strings.Clone(resource),
		ResourceID: resourceID,
		IPAddress:  strings.Clone(c.IP()),
		UserAgent:  strings.Clone(c.Get("User-Agent")),
	}
	activityLog.CreatedAt = time.Now().UTC()

	meta := map[string]interface{}{
		"integrity_hash": integrityHash(activityLog),
		"request_id":     RequestIDFromCtx(c),
		"method":         c.Method(),
		"path":           c.Path(),
		"status_code":    c.Response().StatusCode(),
	}
	if details != nil {
		meta["details"] = details
	}
	if raw, err := json.Marshal(meta); err == nil {
		activityLog.Details = raw
	}

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()

		if err := cacheActivityLog(database.GetRedisClient(), al); err != nil {
			logrus.WithError(err).Debug("activity log not cached, saving directly to database")
			if database.DB == nil {
				logrus.Error("database is not connected; dropping activity log")
				return
			}
			if dbErr := database.DB.Create(&al).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log to database")
			}
		}
	}(activityLog)
}

// integrityHash fingerprints the immutable fields of an entry for tamper detection.
func integrityHash(l models.ActivityLog) string {
	data := fmt.Sprintf("%d:%s:%s:%d:%s:%s:%s",
		l.UserID, l.Action, l.Resource, l.ResourceID, l.IPAddress, l.UserAgent,
		l.CreatedAt.Format(time.RFC3339Nano))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}

func cacheActivityLog(rdb *redis.Client, l models.ActivityLog) error {
	if rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("log:%d:%s:%d", l.UserID, l.Action, time.Now().UnixNano())
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, key, raw, logCacheTTL)
	pipe.ZAdd(ctx, logQueueKey, &redis.Z{Score: float64(l.CreatedAt.Unix()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache log: %w", err)
	}
	return nil
}

// LogActivityMiddleware records successful mutating API requests.
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		err := c.Next()
		if err != nil || c.Response().StatusCode() >= 400 {
			return err
		}

		var action string
		switch c.Method() {
		case fiber.MethodPost:
			action = "CREATE"
		case fiber.MethodPut, fiber.MethodPatch:
			action = "UPDATE"
		case fiber.MethodDelete:
			action = "DELETE"
		default:
			return nil
		}
		if strings.Contains(c.Path(), "/auth/") {
			// login and register are logged by the auth controller itself
			return nil
		}

		LogActivity(c, action, resourceFromPath(c.Path()), resourceIDFromPath(c.Path()), nil)
		return nil
	}
}

// resourceFromPath returns the first segment after /api, e.g. "courses".
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return parts[1]
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// resourceIDFromPath returns the first numeric segment of path.
func resourceIDFromPath(path string) uint {
	for _, part := range strings.Split(path, "/") {
		if id, err := strconv.ParseUint(part, 10, 64); err == nil {
			return uint(id)
		}
	}
	return 0
}
