package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"learnhub_go/config"
	"learnhub_go/database"
	"learnhub_go/models"
	"learnhub_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const blacklistPrefix = "blacklist:jwt:"

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWTExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, utils.Unauthorized("Unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, utils.Unauthorized("Invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, utils.Unauthorized("Invalid token claims")
	}
	return claims, nil
}

// localBlacklist holds revoked tokens while Redis is unavailable.
var localBlacklist = struct {
	sync.Mutex
	tokens map[string]time.Time
}{tokens: map[string]time.Time{}}

// BlacklistToken revokes a token until it would have expired anyway.
func BlacklistToken(ctx context.Context, tokenString string, claims *Claims) error {
	ttl := time.Minute
	if claims != nil && claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}

	if rdb := database.GetRedisClient(); rdb != nil {
		err := rdb.Set(ctx, blacklistPrefix+tokenString, "1", ttl).Err()
		if err == nil {
			return nil
		}
		logrus.WithError(err).Warn("failed to blacklist token in redis, keeping it in memory")
	}

	localBlacklist.Lock()
	defer localBlacklist.Unlock()
	now := time.Now()
	for t, exp := range localBlacklist.tokens {
		if now.After(exp) {
			delete(localBlacklist.tokens, t)
		}
	}
	localBlacklist.tokens[strings.Clone(tokenString)] = now.Add(ttl)
	return nil
}

// IsTokenBlacklisted checks Redis first, then the in-memory fallback.
func IsTokenBlacklisted(ctx context.Context, tokenString string) bool {
	if rdb := database.GetRedisClient(); rdb != nil {
		n, err := rdb.Exists(ctx, blacklistPrefix+tokenString).Result()
		if err == nil && n > 0 {
			return true
		}
		if err != nil && err != redis.Nil {
			logrus.WithError(err).Warn("token blacklist lookup failed")
		}
	}

	localBlacklist.Lock()
	defer localBlacklist.Unlock()
	exp, ok := localBlacklist.tokens[tokenString]
	return ok && time.Now().Before(exp)
}

// AuthenticateToken resolves a bearer token to its active user. Revoked tokens
// and deactivated users are rejected.
func AuthenticateToken(ctx context.Context, tokenString string) (*models.User, *Claims, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}
	if IsTokenBlacklisted(ctx, tokenString) {
		return nil, nil, utils.Unauthorized("Token has been revoked")
	}

	// Deactivated users lose access on their next request
	var user models.User
	if err := database.DB.Where("id = ? AND active = ?", claims.UserID, true).First(&user).Error; err != nil {
		return nil, nil, utils.Unauthorized("User not found or inactive")
	}
	return &user, claims, nil
}

// JWTMiddleware validates JWT tokens
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.Unauthorized("Missing authorization header")
		}

		// Extract token from "Bearer <token>". The header aliases fasthttp's
		// request buffer, so the token is copied before it is stored anywhere.
		tokenString := strings.Clone(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == authHeader || tokenString == "" {
			return utils.Unauthorized("Invalid authorization header format")
		}

		user, claims, err := AuthenticateToken(c.UserContext(), tokenString)
		if err != nil {
			return err
		}

		c.Locals("user", user)
		c.Locals("claims", claims)
		c.Locals("token", tokenString)

		return c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return utils.Forbidden("Insufficient permissions")
	}
}

// RequireAdmin allows admins only
func RequireAdmin() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}

// RequireTeacherOrAdmin allows teachers and admins
func RequireTeacherOrAdmin() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin)
}

// GetCurrentUser returns the current authenticated user
func GetCurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return nil, utils.Unauthorized("User not found in context")
	}
	return user, nil
}

// GetCurrentClaims returns the current JWT claims
func GetCurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil, utils.Unauthorized("Claims not found in context")
	}
	return claims, nil
}

// GetCurrentToken returns the raw bearer token of the request
func GetCurrentToken(c *fiber.Ctx) string {
	token, _ := c.Locals("token").(string)
	return token
}
