package services

import (
	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
)

// AccessService answers ownership questions: teacher owns course,
// student owns their data, parent is linked to a child.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

func (s *AccessService) loadCourse(courseID uint) (*models.Course, error) {
	var course models.Course
	if err := s.db.First(&course, courseID).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Course not found")
		}
		return nil, err
	}
	return &course, nil
}

// ManageCourse allows admins and the course instructor.
func (s *AccessService) ManageCourse(user *models.User, courseID uint) (*models.Course, error) {
	course, err := s.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin || (user.Role == models.RoleTeacher && course.InstructorID == user.ID) {
		return course, nil
	}
	return nil, utils.Forbidden("You do not manage this course")
}

// ViewCourse additionally allows enrolled students and parents of enrolled students.
func (s *AccessService) ViewCourse(user *models.User, courseID uint) (*models.Course, error) {
	course, err := s.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	switch user.Role {
	case models.RoleAdmin:
		return course, nil
	case models.RoleTeacher:
		if course.InstructorID == user.ID {
			return course, nil
		}
	case models.RoleStudent:
		ok, err := s.isEnrolled(user.ID, courseID)
		if err != nil {
			return nil, err
		}
		if ok {
			return course, nil
		}
	case models.RoleParent:
		var count int64
		err := s.db.Model(&models.Enrollment{}).
			Joins("JOIN parent_students ON parent_students.student_id = enrollments.student_id").
			Where("parent_students.parent_id = ? AND enrollments.course_id = ? AND enrollments.status <> ?", user.ID, courseID, models.EnrollmentDropped).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return course, nil
		}
	}
	return nil, utils.Forbidden("You do not have access to this course")
}

func (s *AccessService) isEnrolled(studentID, courseID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ? AND status <> ?", studentID, courseID, models.EnrollmentDropped).
		Count(&count).Error
	return count > 0, err
}

// IsParentOf reports whether parentID is linked to studentID.
func (s *AccessService) IsParentOf(parentID, studentID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ParentStudent{}).
		Where("parent_id = ? AND student_id = ?", parentID, studentID).
		Count(&count).Error
	return count > 0, err
}

// ViewStudent allows admins, the student, linked parents and teachers of the student's courses.
func (s *AccessService) ViewStudent(user *models.User, studentID uint) error {
	switch user.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if user.ID == studentID {
			return nil
		}
	case models.RoleParent:
		ok, err := s.IsParentOf(user.ID, studentID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	case models.RoleTeacher:
		var count int64
		err := s.db.Model(&models.Enrollment{}).
			Joins("JOIN courses ON courses.id = enrollments.course_id").
			Where("courses.instructor_id = ? AND enrollments.student_id = ?", user.ID, studentID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}
	return utils.Forbidden("You do not have access to this student")
}
