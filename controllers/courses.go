package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/models"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

type CourseController struct {
	courses     *services.CourseService
	enrollments *services.EnrollmentService
	access      *services.AccessService
}

func NewCourseController(courses *services.CourseService, enrollments *services.EnrollmentService, access *services.AccessService) *CourseController {
	return &CourseController{courses: courses, enrollments: enrollments, access: access}
}

// GetCourses lists courses with their active enrollment count. Only admins
// see inactive courses.
func (cc *CourseController) GetCourses(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	instructorID, err := queryID(c, "instructor_id")
	if err != nil {
		return err
	}

	p := paging(c)
	courses, total, err := cc.courses.List(services.CourseFilter{
		InstructorID:    instructorID,
		Search:          c.Query("search"),
		IncludeInactive: user.Role == models.RoleAdmin,
	}, p)
	if err != nil {
		return err
	}
	return paginated(c, "courses", courses, total, p)
}

func (cc *CourseController) GetCourse(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	course, err := cc.courses.Get(id)
	if err != nil {
		return err
	}
	if !course.Active && user.Role != models.RoleAdmin && course.InstructorID != user.ID {
		return utils.NotFound("Course not found")
	}
	return c.JSON(fiber.Map{"course": course})
}

// CreateCourse creates a course; teachers become its instructor
func (cc *CourseController) CreateCourse(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req services.CourseInput
	if err := bind(c, &req); err != nil {
		return err
	}
	course, err := cc.courses.Create(user, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Course created successfully",
		"course":  course,
	})
}

func (cc *CourseController) UpdateCourse(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.CourseUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	course, err := cc.courses.Update(user, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Course updated successfully",
		"course":  course,
	})
}

// DeleteCourse removes a course and, through the foreign keys, everything under it
func (cc *CourseController) DeleteCourse(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := cc.courses.Delete(id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Course deleted successfully"})
}

// GetCourseStudents lists students with a non-dropped enrollment.
func (cc *CourseController) GetCourseStudents(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := cc.access.ManageCourse(user, id); err != nil {
		return err
	}
	enrollments, err := cc.courses.Students(id)
	if err != nil {
		return err
	}

	students := make([]fiber.Map, 0, len(enrollments))
	for _, e := range enrollments {
		students = append(students, fiber.Map{
			"student":       utils.ToUserShort(e.Student),
			"enrollment_id": e.ID,
			"status":        e.Status,
			"progress":      e.Progress,
			"enrolled_at":   e.EnrolledAt,
		})
	}
	return c.JSON(fiber.Map{"students": students, "total": len(students)})
}

// GetCourseEnrollments lists every enrollment of a course, optionally by status.
func (cc *CourseController) GetCourseEnrollments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := cc.access.ManageCourse(user, id); err != nil {
		return err
	}
	enrollments, err := cc.enrollments.ForCourse(id, c.Query("status"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enrollments": enrollments, "total": len(enrollments)})
}
