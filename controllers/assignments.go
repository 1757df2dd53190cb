package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

type AssignmentController struct {
	assignments *services.AssignmentService
}

func NewAssignmentController(assignments *services.AssignmentService) *AssignmentController {
	return &AssignmentController{assignments: assignments}
}

type GradeRequest struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback string   `json:"feedback" validate:"max=5000"`
}

// GetAssignments lists the assignments visible to the caller, optionally for one course
func (ac *AssignmentController) GetAssignments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := queryID(c, "courseId")
	if err != nil {
		return err
	}
	p := paging(c)
	list, total, err := ac.assignments.List(user, courseID, p)
	if err != nil {
		return err
	}
	return paginated(c, "assignments", list, total, p)
}

func (ac *AssignmentController) GetAssignment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := ac.assignments.Get(user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"assignment": a})
}

func (ac *AssignmentController) CreateAssignment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req services.AssignmentInput
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := ac.assignments.Create(user, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Assignment created successfully",
		"assignment": a,
	})
}

func (ac *AssignmentController) UpdateAssignment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.AssignmentUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := ac.assignments.Update(user, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":    "Assignment updated successfully",
		"assignment": a,
	})
}

func (ac *AssignmentController) DeleteAssignment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := ac.assignments.Delete(user, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Assignment deleted successfully"})
}

// Submit stores the student's work; late submissions are accepted and flagged
func (ac *AssignmentController) Submit(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.SubmissionInput
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := ac.assignments.Submit(user.ID, id, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (ac *AssignmentController) GetSubmissions(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	list, err := ac.assignments.Submissions(user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"submissions": list, "total": len(list)})
}

func (ac *AssignmentController) GradeSubmission(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req GradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := ac.assignments.Grade(user, id, services.GradeInput{Grade: *req.Grade, Feedback: req.Feedback})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":    "Submission graded",
		"submission": sub,
	})
}

// MyGrades returns the current student's graded work and per-course averages.
func (ac *AssignmentController) MyGrades(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	grades, err := ac.assignments.StudentGrades(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(grades)
}
