package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

// SessionController serves class sessions and their attendance.
type SessionController struct {
	sessions *services.SessionService
}

func NewSessionController(sessions *services.SessionService) *SessionController {
	return &SessionController{sessions: sessions}
}

type SessionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
}

// GetSessions lists sessions filtered by course, status and a from/to window
func (sc *SessionController) GetSessions(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := queryID(c, "courseId")
	if err != nil {
		return err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}

	p := paging(c)
	list, total, err := sc.sessions.List(user, services.SessionFilter{
		CourseID: courseID,
		Status:   c.Query("status"),
		From:     from,
		To:       to,
	}, p)
	if err != nil {
		return err
	}
	return paginated(c, "sessions", list, total, p)
}

func (sc *SessionController) GetSession(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	session, err := sc.sessions.Get(user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": session})
}

func (sc *SessionController) CreateSession(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req services.SessionInput
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := sc.sessions.Create(user, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Session created successfully",
		"session": session,
	})
}

func (sc *SessionController) UpdateSession(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.SessionUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := sc.sessions.Update(user, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Session updated successfully",
		"session": session,
	})
}

func (sc *SessionController) UpdateStatus(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req SessionStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := sc.sessions.UpdateStatus(user, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": session})
}

func (sc *SessionController) DeleteSession(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := sc.sessions.Delete(user, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Session deleted successfully"})
}

// BulkAttendance upserts one attendance row per student; the last record for
// a student wins.
func (sc *SessionController) BulkAttendance(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.BulkAttendanceInput
	if err := bind(c, &req); err != nil {
		return err
	}
	rows, err := sc.sessions.BulkAttendance(user, id, req.Records)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":    "Attendance saved",
		"attendance": rows,
		"total":      len(rows),
	})
}

func (sc *SessionController) GetAttendance(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rows, err := sc.sessions.SessionAttendance(user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"attendance": rows, "total": len(rows)})
}

// MyAttendance returns the current student's records with per-status counts.
func (sc *SessionController) MyAttendance(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	attendance, err := sc.sessions.StudentAttendance(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(attendance)
}
