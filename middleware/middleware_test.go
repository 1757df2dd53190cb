package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub_go/config"
	"learnhub_go/database"
	"learnhub_go/models"
	"learnhub_go/testutil"
	"learnhub_go/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// setup points the package globals at a fresh database and, when withRedis
// is set, a miniredis instance.
func setup(t *testing.T, withRedis bool) (*gorm.DB, *redis.Client) {
	t.Helper()
	prevCfg, prevDB, prevRedis := config.AppConfig, database.DB, database.RedisClient
	t.Cleanup(func() {
		config.AppConfig, database.DB, database.RedisClient = prevCfg, prevDB, prevRedis
	})

	config.AppConfig = &config.Config{
		JWTSecret:         "test-secret-0123456789",
		JWTExpiresIn:      time.Hour,
		RateLimitMax:      100,
		RateLimitWindow:   time.Minute,
		LoginRateLimitMax: 2,
	}
	db := testutil.NewDB(t)
	database.DB = db
	database.RedisClient = nil

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		database.RedisClient = rdb
	}
	return db, rdb
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestJWTMiddleware(t *testing.T) {
	db, _ := setup(t, true)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	inactive := testutil.CreateUser(t, db, models.RoleStudent)
	db.Model(inactive).Update("active", false)

	good, err := GenerateToken(student)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	stale, _ := GenerateToken(inactive)
	revoked, _ := GenerateToken(student)
	claims, err := parseToken(revoked)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := BlacklistToken(context.Background(), revoked, claims); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	app := newApp()
	app.Get("/me", JWTMiddleware(), func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": user.ID})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", 401},
		{"not bearer", "Token " + good, 401},
		{"garbage", "Bearer not-a-jwt", 401},
		{"inactive user", "Bearer " + stale, 401},
		{"revoked", "Bearer " + revoked, 401},
		{"valid", "Bearer " + good, 200},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestBlacklistFallsBackToMemory(t *testing.T) {
	db, _ := setup(t, false)
	user := testutil.CreateUser(t, db, models.RoleParent)
	token, _ := GenerateToken(user)
	claims, _ := parseToken(token)

	if IsTokenBlacklisted(context.Background(), token) {
		t.Fatal("fresh token must not be blacklisted")
	}
	if err := BlacklistToken(context.Background(), token, claims); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if !IsTokenBlacklisted(context.Background(), token) {
		t.Fatal("expected token to be blacklisted in memory")
	}
}

func TestRequireRole(t *testing.T) {
	db, _ := setup(t, false)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)

	app := newApp()
	app.Get("/admin", JWTMiddleware(), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, tc := range []struct {
		user   *models.User
		status int
	}{
		{student, 403},
		{admin, 204},
	} {
		token, _ := GenerateToken(tc.user)
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.user.Role, tc.status, resp.StatusCode)
		}
	}
}

func TestErrorHandler(t *testing.T) {
	app := newApp()
	app.Get("/missing", func(c *fiber.Ctx) error { return utils.NotFound("Course not found") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("dial tcp 10.0.0.1:3306: refused") })
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return utils.ValidateStruct(struct {
			Email string `json:"email" validate:"required,email"`
		}{Email: "nope"})
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTooManyRequests, "slow down") })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/missing", 404, "Course not found"},
		{"/boom", 500, "Internal Server Error"},
		{"/invalid", 400, "Validation failed"},
		{"/fiber", 429, "slow down"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			body := decode(t, resp.Body)
			if body["error"] != tc.message || body["path"] != tc.path || body["method"] != "GET" {
				t.Fatalf("unexpected body %v", body)
			}
			if int(body["code"].(float64)) != tc.status {
				t.Fatalf("expected code %d in body, got %v", tc.status, body["code"])
			}
			if tc.status == 400 {
				fields, _ := body["fields"].(map[string]interface{})
				if fields["email"] != "email" {
					t.Fatalf("expected email field error, got %v", body["fields"])
				}
			}
		})
	}
}

func TestLoginLimiterSharedAcrossInstances(t *testing.T) {
	_, rdb := setup(t, true)

	// two app instances behind a load balancer share the Redis counters
	newInstance := func() *fiber.App {
		app := newApp()
		app.Post("/login", LoginRateLimiter(config.AppConfig, rdb), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusUnauthorized)
		})
		return app
	}
	a, b := newInstance(), newInstance()

	statuses := []int{}
	for _, app := range []*fiber.App{a, b, a} {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != 401 || statuses[1] != 401 || statuses[2] != 429 {
		t.Fatalf("expected [401 401 429], got %v", statuses)
	}
}

func TestRedisStorage(t *testing.T) {
	_, rdb := setup(t, true)
	st := NewRedisStorage(rdb, "test:")

	if v, err := st.Get("k"); err != nil || v != nil {
		t.Fatalf("expected empty get, got %q %v", v, err)
	}
	if err := st.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := st.Get("k"); string(v) != "v" {
		t.Fatalf("expected v, got %q", v)
	}
	if err := st.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if v, _ := st.Get("k"); v != nil {
		t.Fatalf("expected reset to clear keys, got %q", v)
	}
}

func TestActivityLogCachedInRedis(t *testing.T) {
	_, rdb := setup(t, true)

	app := newApp()
	app.Use(LogActivityMiddleware())
	app.Post("/api/courses/:id/contents", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Post("/api/courses", func(c *fiber.Ctx) error { return utils.BadRequest("nope") })

	for _, path := range []string{"/api/courses/7/contents", "/api/courses"} {
		if _, err := app.Test(httptest.NewRequest("POST", path, nil)); err != nil {
			t.Fatalf("request: %v", err)
		}
	}

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	var keys []string
	for time.Now().Before(deadline) {
		keys, _ = rdb.ZRange(ctx, logQueueKey, 0, -1).Result()
		if len(keys) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(keys) != 1 {
		t.Fatalf("expected only the successful request queued, got %v", keys)
	}
	raw, err := rdb.Get(ctx, keys[0]).Bytes()
	if err != nil {
		t.Fatalf("cached payload: %v", err)
	}
	var entry models.ActivityLog
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Action != "CREATE" || entry.Resource != "courses" || entry.ResourceID != 7 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestActivityLogWithoutRedisHitsDatabase(t *testing.T) {
	db, _ := setup(t, false)

	app := newApp()
	app.Use(LogActivityMiddleware())
	app.Delete("/api/sessions/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	if _, err := app.Test(httptest.NewRequest("DELETE", "/api/sessions/3", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var n int64
	for time.Now().Before(deadline) {
		db.Model(&models.ActivityLog{}).Where("action = ? AND resource = ?", "DELETE", "sessions").Count(&n)
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if n != 1 {
		t.Fatalf("expected one stored activity log, got %d", n)
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path     string
		resource string
		id       uint
	}{
		{"/api/courses/12/contents", "courses", 12},
		{"/api/notifications/mark-all-read", "notifications", 0},
		{"/health", "health", 0},
	}
	for _, tc := range tests {
		if got := resourceFromPath(tc.path); got != tc.resource {
			t.Fatalf("resourceFromPath(%s) = %s, want %s", tc.path, got, tc.resource)
		}
		if got := resourceIDFromPath(tc.path); got != tc.id {
			t.Fatalf("resourceIDFromPath(%s) = %d, want %d", tc.path, got, tc.id)
		}
	}
}

func TestLogoutKeepsOtherTokensValid(t *testing.T) {
	db, _ := setup(t, false)
	alice := testutil.CreateUser(t, db, models.RoleStudent)
	bob := testutil.CreateUser(t, db, models.RoleStudent)
	aliceToken, _ := GenerateToken(alice)
	bobToken, _ := GenerateToken(bob)

	app := newApp()
	app.Post("/logout", JWTMiddleware(), func(c *fiber.Ctx) error {
		claims, err := GetCurrentClaims(c)
		if err != nil {
			return err
		}
		if err := BlacklistToken(c.UserContext(), GetCurrentToken(c), claims); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/me", JWTMiddleware(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	steps := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"bob before logout", "GET", "/me", bobToken, 200},
		{"alice logs out", "POST", "/logout", aliceToken, 200},
		{"bob after alice logged out", "GET", "/me", bobToken, 200},
		{"bob again", "GET", "/me", bobToken, 200},
		{"alice is revoked", "GET", "/me", aliceToken, 401},
	}
	for _, step := range steps {
		req := httptest.NewRequest(step.method, step.path, nil)
		req.Header.Set("Authorization", "Bearer "+step.token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if resp.StatusCode != step.status {
			t.Fatalf("%s: expected %d, got %d", step.name, step.status, resp.StatusCode)
		}
	}
	if !IsTokenBlacklisted(context.Background(), aliceToken) {
		t.Fatal("alice's token should still be blacklisted")
	}
	if IsTokenBlacklisted(context.Background(), bobToken) {
		t.Fatal("bob's token must not be blacklisted")
	}
}

func TestActivityLogKeepsEachUserAgent(t *testing.T) {
	db, _ := setup(t, false)

	app := newApp()
	app.Use(LogActivityMiddleware())
	app.Post("/api/courses", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	agents := []string{"first-agent/1.0", "BBBBBBBBBBBBBBBB-second-agent"}
	for _, agent := range agents {
		req := httptest.NewRequest("POST", "/api/courses", nil)
		req.Header.Set("User-Agent", agent)
		if _, err := app.Test(req); err != nil {
			t.Fatalf("request: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	var rows []models.ActivityLog
	for time.Now().Before(deadline) {
		rows = nil
		db.Where("resource = ?", "courses").Find(&rows)
		if len(rows) == len(agents) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(rows) != len(agents) {
		t.Fatalf("expected %d activity logs, got %d", len(agents), len(rows))
	}
	seen := map[string]bool{}
	for _, row := range rows {
		seen[row.UserAgent] = true
	}
	for _, agent := range agents {
		if !seen[agent] {
			t.Fatalf("agent %q not stored, got %v", agent, seen)
		}
	}
}

func TestGlobalLimiterSkipsHealthChecks(t *testing.T) {
	setup(t, false)
	config.AppConfig.RateLimitMax = 1

	app := newApp()
	app.Use(GlobalRateLimiter(config.AppConfig, nil))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/health", ok)
	app.Get("/api/health", ok)
	app.Get("/api/courses", ok)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/health", 200},
		{"/api/health", 200},
		{"/health", 200},
		{"/api/courses", 200},
		{"/api/courses", 429},
		{"/api/health", 200},
	}
	for i, tc := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("request %d %s: expected %d, got %d", i, tc.path, tc.status, resp.StatusCode)
		}
	}
}
