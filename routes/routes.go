package routes

import (
	"learnhub_go/config"
	"learnhub_go/controllers"
	"learnhub_go/handlers"
	"learnhub_go/middleware"
	"learnhub_go/models"
	"learnhub_go/services"
	"learnhub_go/services/notifications"
	"learnhub_go/services/websocket"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps carries the long-lived pieces main builds once.
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	Hub           *websocket.Hub
	Notifications *notifications.Service
	Files         controllers.ContentFileStore
	Logs          *services.LogArchiveService
	Health        *services.HealthService
	Line          *services.LineMessagingService
	LineLinks     *services.LineLinkService
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, d Deps) {
	notifier := services.Notifier(d.Notifications)
	if d.Notifications == nil {
		notifier = nil
	}

	users := services.NewUserService(d.DB)
	courses := services.NewCourseService(d.DB)
	access := services.NewAccessService(d.DB)
	enrollments := services.NewEnrollmentService(d.DB, notifier)
	assignments := services.NewAssignmentService(d.DB, notifier)
	sessions := services.NewSessionService(d.DB)
	contents := services.NewContentService(d.DB)
	parents := services.NewParentService(d.DB)

	authController := controllers.NewAuthController(users, d.LineLinks)
	userController := controllers.NewUserController(users)
	courseController := controllers.NewCourseController(courses, enrollments, access)
	enrollmentController := controllers.NewEnrollmentController(enrollments, access)
	assignmentController := controllers.NewAssignmentController(assignments)
	sessionController := controllers.NewSessionController(sessions)
	contentController := controllers.NewContentController(contents, access, d.Files)
	notificationController := controllers.NewNotificationController(d.Notifications)
	parentController := controllers.NewParentController(parents)
	dashboardController := controllers.NewDashboardController(services.NewDashboardService(d.DB))
	reportController := controllers.NewReportController(services.NewReportService(d.DB))
	logController := controllers.NewLogController(d.Logs, d.Config.LogArchiveDays)
	healthController := controllers.NewHealthController(d.Health)
	wsController := controllers.NewWebSocketController(d.Hub)

	app.Get("/health", healthController.Liveness)

	// LINE platform callback; the handler answers 200 when LINE is not configured
	lineHandler := handlers.NewLineWebhookHandler(d.Config.LineChannelSecret, d.Line, d.LineLinks)
	app.Post("/line/webhook", lineHandler.Handle)

	// ws://host/ws?token=<jwt>
	app.Get("/ws", wsController.Upgrade, wsController.Handler())

	api := app.Group("/api")
	api.Get("/health", healthController.GetHealthStatus)

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/register", authController.Register)
	auth.Post("/login", middleware.LoginRateLimiter(d.Config, d.Redis), authController.Login)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.GetProfile)

	// Protected routes. JWT is attached per resource group so unknown /api
	// paths still reach the JSON 404.
	jwt := middleware.JWTMiddleware()

	auth.Post("/logout", jwt, authController.Logout)
	auth.Post("/line/link-code", jwt, authController.IssueLineLinkCode)

	profile := api.Group("/profile", jwt)
	profile.Get("/", authController.GetProfile)
	profile.Put("/", authController.UpdateProfile)
	profile.Put("/password", authController.ChangePassword)

	// User management (admin)
	usersGroup := api.Group("/users", jwt, middleware.RequireAdmin())
	usersGroup.Get("/", userController.GetUsers)
	usersGroup.Get("/:id", userController.GetUser)
	usersGroup.Post("/", userController.CreateUser)
	usersGroup.Put("/:id", userController.UpdateUser)
	usersGroup.Patch("/:id/deactivate", userController.DeactivateUser)
	usersGroup.Patch("/:id/activate", userController.ActivateUser)

	coursesGroup := api.Group("/courses", jwt)
	coursesGroup.Get("/", courseController.GetCourses)
	coursesGroup.Get("/:id", courseController.GetCourse)
	coursesGroup.Post("/", middleware.RequireTeacherOrAdmin(), courseController.CreateCourse)
	coursesGroup.Put("/:id", middleware.RequireTeacherOrAdmin(), courseController.UpdateCourse)
	coursesGroup.Delete("/:id", middleware.RequireAdmin(), courseController.DeleteCourse)
	coursesGroup.Get("/:id/students", middleware.RequireTeacherOrAdmin(), courseController.GetCourseStudents)
	coursesGroup.Get("/:id/enrollments", middleware.RequireTeacherOrAdmin(), courseController.GetCourseEnrollments)
	coursesGroup.Get("/:id/gradebook.xlsx", middleware.RequireTeacherOrAdmin(), reportController.Gradebook)
	coursesGroup.Get("/:id/contents", contentController.GetContents)
	coursesGroup.Post("/:id/contents", middleware.RequireTeacherOrAdmin(), contentController.CreateContent)
	coursesGroup.Put("/:id/contents/reorder", middleware.RequireTeacherOrAdmin(), contentController.ReorderContents)

	// Student self-service
	students := api.Group("/students", jwt, middleware.RequireRole(models.RoleStudent))
	students.Post("/enroll/:courseId", enrollmentController.Enroll)
	students.Post("/drop/:courseId", enrollmentController.Drop)
	students.Get("/enrollments", enrollmentController.MyEnrollments)
	students.Get("/grades", assignmentController.MyGrades)
	students.Get("/attendance", sessionController.MyAttendance)

	enrollmentsGroup := api.Group("/enrollments", jwt)
	enrollmentsGroup.Post("/", middleware.RequireAdmin(), enrollmentController.AdminEnroll)
	enrollmentsGroup.Get("/:id", enrollmentController.GetEnrollment)
	enrollmentsGroup.Patch("/:id/progress", middleware.RequireTeacherOrAdmin(), enrollmentController.UpdateProgress)
	enrollmentsGroup.Patch("/:id/complete", middleware.RequireTeacherOrAdmin(), enrollmentController.Complete)

	assignmentsGroup := api.Group("/assignments", jwt)
	assignmentsGroup.Get("/", assignmentController.GetAssignments)
	assignmentsGroup.Get("/:id", assignmentController.GetAssignment)
	assignmentsGroup.Post("/", middleware.RequireTeacherOrAdmin(), assignmentController.CreateAssignment)
	assignmentsGroup.Put("/:id", middleware.RequireTeacherOrAdmin(), assignmentController.UpdateAssignment)
	assignmentsGroup.Delete("/:id", middleware.RequireTeacherOrAdmin(), assignmentController.DeleteAssignment)
	assignmentsGroup.Post("/:id/submit", middleware.RequireRole(models.RoleStudent), assignmentController.Submit)
	assignmentsGroup.Get("/:id/submissions", middleware.RequireTeacherOrAdmin(), assignmentController.GetSubmissions)

	api.Patch("/submissions/:id/grade", jwt, middleware.RequireTeacherOrAdmin(), assignmentController.GradeSubmission)

	sessionsGroup := api.Group("/sessions", jwt)
	sessionsGroup.Get("/", sessionController.GetSessions)
	sessionsGroup.Get("/:id", sessionController.GetSession)
	sessionsGroup.Post("/", middleware.RequireTeacherOrAdmin(), sessionController.CreateSession)
	sessionsGroup.Put("/:id", middleware.RequireTeacherOrAdmin(), sessionController.UpdateSession)
	sessionsGroup.Patch("/:id/status", middleware.RequireTeacherOrAdmin(), sessionController.UpdateStatus)
	sessionsGroup.Delete("/:id", middleware.RequireTeacherOrAdmin(), sessionController.DeleteSession)
	sessionsGroup.Post("/:id/attendance/bulk", middleware.RequireTeacherOrAdmin(), sessionController.BulkAttendance)
	sessionsGroup.Get("/:id/attendance", middleware.RequireTeacherOrAdmin(), sessionController.GetAttendance)

	contentsGroup := api.Group("/contents", jwt, middleware.RequireTeacherOrAdmin())
	contentsGroup.Put("/:id", contentController.UpdateContent)
	contentsGroup.Delete("/:id", contentController.DeleteContent)

	// Notification management routes
	notificationsGroup := api.Group("/notifications", jwt)
	notificationsGroup.Get("/", notificationController.GetNotifications)
	notificationsGroup.Get("/unread-count", notificationController.GetUnreadCount)
	notificationsGroup.Post("/", middleware.RequireAdmin(), notificationController.CreateNotification)
	notificationsGroup.Patch("/mark-all-read", notificationController.MarkAllAsRead)
	notificationsGroup.Patch("/:id/read", notificationController.MarkAsRead)
	notificationsGroup.Delete("/:id", notificationController.DeleteNotification)

	parentsGroup := api.Group("/parents", jwt)
	parentsGroup.Post("/links", middleware.RequireAdmin(), parentController.LinkParent)
	parentsGroup.Delete("/links/:id", middleware.RequireAdmin(), parentController.UnlinkParent)
	parentsGroup.Get("/children", middleware.RequireRole(models.RoleParent), parentController.GetChildren)
	parentsGroup.Get("/children/:studentId/overview", middleware.RequireRole(models.RoleParent), parentController.GetChildOverview)

	dashboard := api.Group("/dashboard", jwt)
	dashboard.Get("/admin", middleware.RequireAdmin(), dashboardController.Admin)
	dashboard.Get("/teacher", middleware.RequireRole(models.RoleTeacher), dashboardController.Teacher)
	dashboard.Get("/student", middleware.RequireRole(models.RoleStudent), dashboardController.Student)
	dashboard.Get("/parent", middleware.RequireRole(models.RoleParent), dashboardController.Parent)

	// Log management routes (admin only)
	logs := api.Group("/logs", jwt, middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Post("/flush-cache", logController.FlushCachedLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Post("/archive", logController.ArchiveLogs)
	logs.Get("/archives/:id/download", logController.DownloadArchive)

	api.Get("/ws/stats", jwt, middleware.RequireAdmin(), wsController.GetWebSocketStats)
}

// NotFound is mounted last and answers every unmatched route.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "Route not found",
		"code":   fiber.StatusNotFound,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
