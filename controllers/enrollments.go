package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

type EnrollmentController struct {
	enrollments *services.EnrollmentService
	access      *services.AccessService
}

func NewEnrollmentController(enrollments *services.EnrollmentService, access *services.AccessService) *EnrollmentController {
	return &EnrollmentController{enrollments: enrollments, access: access}
}

type AdminEnrollRequest struct {
	StudentID uint `json:"studentId" validate:"required"`
	CourseID  uint `json:"courseId" validate:"required"`
}

type ProgressRequest struct {
	Progress *float64 `json:"progress" validate:"required"`
}

type CompleteRequest struct {
	FinalGrade *float64 `json:"final_grade"`
}

// Enroll puts the current student into a course
func (ec *EnrollmentController) Enroll(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "courseId")
	if err != nil {
		return err
	}
	enrollment, err := ec.enrollments.Enroll(user.ID, courseID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Enrolled successfully",
		"enrollment": enrollment,
	})
}

// AdminEnroll enrolls any student on their behalf.
func (ec *EnrollmentController) AdminEnroll(c *fiber.Ctx) error {
	var req AdminEnrollRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	enrollment, err := ec.enrollments.Enroll(req.StudentID, req.CourseID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Student enrolled successfully",
		"enrollment": enrollment,
	})
}

func (ec *EnrollmentController) Drop(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "courseId")
	if err != nil {
		return err
	}
	enrollment, err := ec.enrollments.Drop(user.ID, courseID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":    "Course dropped",
		"enrollment": enrollment,
	})
}

// MyEnrollments lists the current student's enrollments, optionally by status
func (ec *EnrollmentController) MyEnrollments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	list, err := ec.enrollments.ForStudent(user.ID, c.Query("status"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enrollments": list, "total": len(list)})
}

func (ec *EnrollmentController) GetEnrollment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	enrollment, err := ec.enrollments.Get(id)
	if err != nil {
		return err
	}
	if err := ec.access.ViewStudent(user, enrollment.StudentID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enrollment": enrollment})
}

// managed loads the enrollment and checks the caller runs its course.
func (ec *EnrollmentController) managed(c *fiber.Ctx) (uint, error) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return 0, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return 0, err
	}
	enrollment, err := ec.enrollments.Get(id)
	if err != nil {
		return 0, err
	}
	if _, err := ec.access.ManageCourse(user, enrollment.CourseID); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateProgress sets the completion percentage. Reaching 100 does not complete the enrollment.
func (ec *EnrollmentController) UpdateProgress(c *fiber.Ctx) error {
	id, err := ec.managed(c)
	if err != nil {
		return err
	}
	var req ProgressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	enrollment, err := ec.enrollments.UpdateProgress(id, *req.Progress)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func (ec *EnrollmentController) Complete(c *fiber.Ctx) error {
	id, err := ec.managed(c)
	if err != nil {
		return err
	}
	var req CompleteRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	enrollment, err := ec.enrollments.Complete(id, req.FinalGrade)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":    "Enrollment completed",
		"enrollment": enrollment,
	})
}
