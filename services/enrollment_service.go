package services

import (
	"fmt"
	"time"

	"learnhub_go/models"
	"learnhub_go/services/notifications"
	"learnhub_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

func NewEnrollmentService(db *gorm.DB, notifier Notifier) *EnrollmentService {
	return &EnrollmentService{db: db, notifier: notifier, now: utcNow}
}

// Enroll puts a student into a course.
//
// The course row is locked for the duration of the transaction so the
// capacity check and the insert cannot interleave with another enrollment.
// An existing non-active row is reactivated instead of inserting a new one.
func (s *EnrollmentService) Enroll(studentID, courseID uint) (*models.Enrollment, error) {
	var (
		enrollment  models.Enrollment
		course      models.Course
		reactivated bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var student models.User
		if err := tx.Where("id = ? AND role = ? AND active = ?", studentID, models.RoleStudent, true).First(&student).Error; err != nil {
			if isNotFound(err) {
				return utils.NotFound("Student not found")
			}
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND active = ?", courseID, true).
			First(&course).Error; err != nil {
			if isNotFound(err) {
				return utils.NotFound("Course not found or inactive")
			}
			return err
		}

		err := tx.Where("student_id = ? AND course_id = ?", studentID, courseID).First(&enrollment).Error
		exists := err == nil
		if err != nil && !isNotFound(err) {
			return err
		}
		if exists && enrollment.Status == models.EnrollmentActive {
			return utils.Conflict("Already enrolled in this course")
		}

		var active int64
		if err := tx.Model(&models.Enrollment{}).
			Where("course_id = ? AND status = ?", courseID, models.EnrollmentActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(course.MaxStudents) {
			return utils.BadRequest("Course is full")
		}

		now := s.now()
		if exists {
			reactivated = true
			return tx.Model(&enrollment).Updates(map[string]interface{}{
				"status":       models.EnrollmentActive,
				"enrolled_at":  now,
				"progress":     0,
				"final_grade":  nil,
				"completed_at": nil,
				"dropped_at":   nil,
			}).Error
		}

		enrollment = models.Enrollment{
			StudentID:  studentID,
			CourseID:   courseID,
			Status:     models.EnrollmentActive,
			Progress:   0,
			EnrolledAt: now,
		}
		return tx.Create(&enrollment).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.Preload("Course").First(&enrollment, enrollment.ID).Error; err != nil {
		return nil, err
	}

	data := map[string]uint{"course_id": courseID, "enrollment_id": enrollment.ID}
	notify(s.notifier, []uint{studentID}, notifications.NewWithData(
		"Enrollment confirmed",
		fmt.Sprintf("You are enrolled in %s.", course.Title),
		models.NotificationEnrollment, data))
	verb := "enrolled in"
	if reactivated {
		verb = "re-enrolled in"
	}
	notify(s.notifier, []uint{course.InstructorID}, notifications.NewWithData(
		"New student",
		fmt.Sprintf("A student %s %s.", verb, course.Title),
		models.NotificationEnrollment, data))

	return &enrollment, nil
}

// Drop marks the student's active enrollment as dropped. The row is kept.
func (s *EnrollmentService) Drop(studentID, courseID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.db.Where("student_id = ? AND course_id = ? AND status = ?", studentID, courseID, models.EnrollmentActive).
		First(&enrollment).Error
	if err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Active enrollment not found")
		}
		return nil, err
	}
	now := s.now()
	if err := s.db.Model(&enrollment).Updates(map[string]interface{}{
		"status":     models.EnrollmentDropped,
		"dropped_at": now,
	}).Error; err != nil {
		return nil, err
	}
	enrollment.Status = models.EnrollmentDropped
	enrollment.DroppedAt = &now
	return &enrollment, nil
}

func (s *EnrollmentService) Get(id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.db.Preload("Course").Preload("Student").First(&enrollment, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Enrollment not found")
		}
		return nil, err
	}
	return &enrollment, nil
}

// UpdateProgress sets the completion percentage of an active enrollment.
func (s *EnrollmentService) UpdateProgress(id uint, progress float64) (*models.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return nil, utils.BadRequest("Progress must be between 0 and 100")
	}
	enrollment, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentActive {
		return nil, utils.BadRequest("Only active enrollments can progress")
	}
	if err := s.db.Model(enrollment).Update("progress", progress).Error; err != nil {
		return nil, err
	}
	enrollment.Progress = progress
	return enrollment, nil
}

// Complete closes an active enrollment, optionally recording a final grade.
func (s *EnrollmentService) Complete(id uint, finalGrade *float64) (*models.Enrollment, error) {
	if finalGrade != nil && (*finalGrade < 0 || *finalGrade > 100) {
		return nil, utils.BadRequest("Final grade must be between 0 and 100")
	}
	enrollment, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentActive {
		return nil, utils.BadRequest("Only active enrollments can be completed")
	}
	now := s.now()
	updates := map[string]interface{}{
		"status":       models.EnrollmentCompleted,
		"progress":     100,
		"completed_at": now,
	}
	if finalGrade != nil {
		updates["final_grade"] = *finalGrade
	}
	if err := s.db.Model(enrollment).Updates(updates).Error; err != nil {
		return nil, err
	}

	title := "Course"
	if enrollment.Course != nil {
		title = enrollment.Course.Title
	}
	notify(s.notifier, []uint{enrollment.StudentID}, notifications.New(
		"Course completed",
		fmt.Sprintf("%s has been marked as completed.", title),
		models.NotificationSuccess))

	return s.Get(id)
}

// ForStudent lists a student's enrollments, optionally filtered by status.
func (s *EnrollmentService) ForStudent(studentID uint, status string) ([]models.Enrollment, error) {
	query := s.db.Preload("Course").Preload("Course.Instructor").Where("student_id = ?", studentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var list []models.Enrollment
	err := query.Order("enrolled_at DESC").Find(&list).Error
	return list, err
}

func (s *EnrollmentService) ForCourse(courseID uint, status string) ([]models.Enrollment, error) {
	query := s.db.Preload("Student").Where("course_id = ?", courseID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var list []models.Enrollment
	err := query.Order("enrolled_at ASC").Find(&list).Error
	return list, err
}
