package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub_go/config"
	"learnhub_go/database"
	"learnhub_go/middleware"
	"learnhub_go/models"
	"learnhub_go/services"
	"learnhub_go/services/notifications"
	"learnhub_go/services/websocket"
	"learnhub_go/testutil"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	prevCfg, prevDB, prevRedis := config.AppConfig, database.DB, database.RedisClient
	t.Cleanup(func() {
		config.AppConfig, database.DB, database.RedisClient = prevCfg, prevDB, prevRedis
	})

	cfg := &config.Config{
		JWTSecret:         "routes-test-secret-0123456789",
		JWTExpiresIn:      time.Hour,
		RateLimitMax:      1000,
		RateLimitWindow:   time.Minute,
		LoginRateLimitMax: 50,
		LogArchiveDays:    90,
	}
	config.AppConfig = cfg
	db := testutil.NewDB(t)
	database.DB = db
	database.RedisClient = nil

	line, err := services.NewLineMessagingService("", "")
	if err != nil {
		t.Fatalf("line service: %v", err)
	}
	hub := websocket.NewHub()

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	SetupRoutes(app, Deps{
		Config:        cfg,
		DB:            db,
		Hub:           hub,
		Notifications: notifications.NewServiceWithDB(db, nil, false),
		Logs:          services.NewLogArchiveService(db, nil, nil),
		Health:        services.NewHealthService(db, nil, cfg, hub),
		Line:          line,
		LineLinks:     services.NewLineLinkService(db, nil),
	})
	app.Use(NotFound)
	return app, db
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func idOf(t *testing.T, body map[string]interface{}, key string) uint {
	t.Helper()
	obj, ok := body[key].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no %q object: %v", key, body)
	}
	id, ok := obj["id"].(float64)
	if !ok {
		t.Fatalf("%q has no id: %v", key, obj)
	}
	return uint(id)
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, body := call(t, app, "POST", "/api/auth/login", "", fiber.Map{
		"email":    email,
		"password": testutil.Password,
	})
	if status != fiber.StatusOK {
		t.Fatalf("login %s: status %d %v", email, status, body)
	}
	return body["token"].(string)
}

func TestPublicRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"liveness", "GET", "/health", fiber.StatusOK},
		{"health report", "GET", "/api/health", fiber.StatusOK},
		{"courses need a token", "GET", "/api/courses", fiber.StatusUnauthorized},
		{"unknown route", "GET", "/nope", fiber.StatusNotFound},
		{"unknown api route", "GET", "/api/does-not-exist", fiber.StatusNotFound},
		{"users need a token", "GET", "/api/users", fiber.StatusUnauthorized},
		{"grading needs a token", "PATCH", "/api/submissions/1/grade", fiber.StatusUnauthorized},
		{"logout needs a token", "POST", "/api/auth/logout", fiber.StatusUnauthorized},
		{"websocket without upgrade", "GET", "/ws", fiber.StatusUpgradeRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := call(t, app, tc.method, tc.path, "", nil)
			if status != tc.want {
				t.Fatalf("status = %d, want %d (%v)", status, tc.want, body)
			}
		})
	}
}

func TestRegisterAndRoleGuards(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := call(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"name": "New Student", "email": "new@example.com", "password": "secret1",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("register: status %d %v", status, body)
	}
	token := body["token"].(string)

	status, _ = call(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"name": "Again", "email": "NEW@example.com", "password": "secret1",
	})
	if status != fiber.StatusConflict {
		t.Fatalf("duplicate email: status %d, want 409", status)
	}

	status, _ = call(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"name": "Sneaky", "email": "sneaky@example.com", "password": "secret1", "role": "admin",
	})
	if status != fiber.StatusForbidden {
		t.Fatalf("admin self-register: status %d, want 403", status)
	}

	guarded := []struct {
		method string
		path   string
	}{
		{"GET", "/api/users"},
		{"GET", "/api/dashboard/teacher"},
		{"GET", "/api/logs"},
		{"POST", "/api/courses"},
		{"GET", "/api/ws/stats"},
	}
	for _, g := range guarded {
		t.Run(g.path, func(t *testing.T) {
			status, _ := call(t, app, g.method, g.path, token, fiber.Map{})
			if status != fiber.StatusForbidden {
				t.Fatalf("%s %s as student: status %d, want 403", g.method, g.path, status)
			}
		})
	}

	status, _ = call(t, app, "GET", "/api/dashboard/student", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("student dashboard: status %d", status)
	}

	status, _ = call(t, app, "POST", "/api/auth/logout", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	status, _ = call(t, app, "GET", "/api/profile", token, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("revoked token: status %d, want 401", status)
	}
}

func TestCourseLifecycle(t *testing.T) {
	app, db := newTestApp(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	alice := testutil.CreateUser(t, db, models.RoleStudent)
	bob := testutil.CreateUser(t, db, models.RoleStudent)

	teacherToken := login(t, app, teacher.Email)
	aliceToken := login(t, app, alice.Email)
	bobToken := login(t, app, bob.Email)

	status, body := call(t, app, "POST", "/api/courses", teacherToken, fiber.Map{
		"title": "Go Basics", "max_students": 1,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create course: status %d %v", status, body)
	}
	courseID := idOf(t, body, "course")

	status, body = call(t, app, "POST", fmt.Sprintf("/api/students/enroll/%d", courseID), aliceToken, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("enroll alice: status %d %v", status, body)
	}
	status, _ = call(t, app, "POST", fmt.Sprintf("/api/students/enroll/%d", courseID), aliceToken, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("enroll alice twice: status %d, want 409", status)
	}
	status, _ = call(t, app, "POST", fmt.Sprintf("/api/students/enroll/%d", courseID), bobToken, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("enroll into full course: status %d, want 400", status)
	}

	status, body = call(t, app, "POST", "/api/assignments", teacherToken, fiber.Map{
		"course_id":  courseID,
		"title":      "First program",
		"type":       "homework",
		"due_date":   time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
		"max_points": 100,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create assignment: status %d %v", status, body)
	}
	assignmentID := idOf(t, body, "assignment")

	status, body = call(t, app, "POST", fmt.Sprintf("/api/assignments/%d/submit", assignmentID), aliceToken, fiber.Map{
		"submission_text": "package main",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("submit: status %d %v", status, body)
	}
	if body["isPastDue"] != false {
		t.Fatalf("isPastDue = %v, want false", body["isPastDue"])
	}
	submissionID := idOf(t, body, "submission")

	status, _ = call(t, app, "POST", fmt.Sprintf("/api/assignments/%d/submit", assignmentID), bobToken, fiber.Map{
		"submission_text": "not enrolled",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("submit without enrollment: status %d, want 404", status)
	}

	grade := fmt.Sprintf("/api/submissions/%d/grade", submissionID)
	status, _ = call(t, app, "PATCH", grade, teacherToken, fiber.Map{"grade": 150})
	if status != fiber.StatusBadRequest {
		t.Fatalf("grade above max points: status %d, want 400", status)
	}
	status, body = call(t, app, "PATCH", grade, teacherToken, fiber.Map{"grade": 88, "feedback": "nice"})
	if status != fiber.StatusOK {
		t.Fatalf("grade: status %d %v", status, body)
	}

	status, body = call(t, app, "GET", "/api/notifications/unread-count", aliceToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("unread count: status %d", status)
	}
	// enrollment confirmation, new assignment and grade posted
	if got := body["unread_count"]; got != float64(3) {
		t.Fatalf("unread_count = %v, want 3", got)
	}

	status, body = call(t, app, "GET", fmt.Sprintf("/api/courses/%d/students", courseID), teacherToken, nil)
	if status != fiber.StatusOK || body["total"] != float64(1) {
		t.Fatalf("course students: status %d %v", status, body)
	}
}
