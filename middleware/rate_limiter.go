package middleware

import (
	"context"
	"time"

	"learnhub_go/config"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitPrefix = "ratelimit:"
	redisOpTimeout  = 500 * time.Millisecond
)

// RedisStorage is a fiber.Storage backed by Redis so every instance of the
// API shares the same rate limit counters. When Redis fails it reports no
// entry, which lets requests through rather than locking everyone out.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (s *RedisStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	if len(key) == 0 {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).Warn("rate limit storage read failed")
		return nil, nil
	}
	return val, nil
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if len(key) == 0 || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+key, val, exp).Err(); err != nil {
		logrus.WithError(err).Warn("rate limit storage write failed")
	}
	return nil
}

func (s *RedisStorage) Delete(key string) error {
	if len(key) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Reset removes every key under the storage prefix.
func (s *RedisStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op: the client is shared with the rest of the app.
func (s *RedisStorage) Close() error {
	return nil
}

func limiterStorage(rdb *redis.Client) fiber.Storage {
	if rdb == nil {
		// the limiter falls back to its in-process memory store
		return nil
	}
	return NewRedisStorage(rdb, rateLimitPrefix)
}

func limitReached(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later")
}

// GlobalRateLimiter limits every client IP to RATE_LIMIT_MAX requests per
// RATE_LIMIT_WINDOW.
func GlobalRateLimiter(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			// websocket upgrades and health probes are not counted
			switch c.Path() {
			case "/health", "/api/health", "/ws":
				return true
			}
			return false
		},
		Max:          cfg.RateLimitMax,
		Expiration:   cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return "global:" + c.IP() },
		LimitReached: limitReached,
		Storage:      limiterStorage(rdb),
	})
}

// LoginRateLimiter is the stricter per-IP limit of the login endpoint.
func LoginRateLimiter(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          cfg.LoginRateLimitMax,
		Expiration:   cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return "login:" + c.IP() },
		LimitReached: limitReached,
		Storage:      limiterStorage(rdb),
	})
}
