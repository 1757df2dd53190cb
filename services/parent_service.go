package services

import (
	"database/sql"

	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
)

type ParentService struct {
	db       *gorm.DB
	access   *AccessService
	sessions *SessionService
}

func NewParentService(db *gorm.DB) *ParentService {
	return &ParentService{db: db, access: NewAccessService(db), sessions: NewSessionService(db)}
}

type LinkInput struct {
	ParentID     uint   `json:"parentId" validate:"required"`
	StudentID    uint   `json:"studentId" validate:"required"`
	Relationship string `json:"relationship" validate:"omitempty,max=50"`
}

// ChildOverview is what a parent sees about one linked student.
type ChildOverview struct {
	Student      *utils.UserShort    `json:"student"`
	Enrollments  []models.Enrollment `json:"enrollments"`
	AverageGrade *float64            `json:"average_grade"`
	Attendance   AttendanceSummary   `json:"attendance"`
}

func (s *ParentService) userWithRole(id uint, role string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("User %d not found", id)
		}
		return nil, err
	}
	if user.Role != role {
		return nil, utils.BadRequest("User %d is not a %s", id, role)
	}
	return &user, nil
}

// Link records that parentID is a guardian of studentID.
func (s *ParentService) Link(in LinkInput) (*models.ParentStudent, error) {
	if _, err := s.userWithRole(in.ParentID, models.RoleParent); err != nil {
		return nil, err
	}
	if _, err := s.userWithRole(in.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}
	ok, err := s.access.IsParentOf(in.ParentID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, utils.Conflict("Parent is already linked to this student")
	}
	link := models.ParentStudent{
		ParentID:     in.ParentID,
		StudentID:    in.StudentID,
		Relationship: in.Relationship,
	}
	if err := s.db.Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *ParentService) Unlink(id uint) error {
	res := s.db.Delete(&models.ParentStudent{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Link not found")
	}
	return nil
}

// Children lists the students linked to a parent.
func (s *ParentService) Children(parentID uint) ([]models.User, error) {
	var children []models.User
	err := s.db.Model(&models.User{}).
		Joins("JOIN parent_students ON parent_students.student_id = users.id").
		Where("parent_students.parent_id = ?", parentID).
		Order("users.name ASC").
		Find(&children).Error
	return children, err
}

func (s *ParentService) averageGrade(studentID uint) (*float64, error) {
	var avg sql.NullFloat64
	if err := s.db.Model(&models.Submission{}).
		Select("AVG(grade)").
		Where("student_id = ? AND grade IS NOT NULL", studentID).
		Row().Scan(&avg); err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// ChildOverview summarizes a linked child's enrollments, grades and attendance.
func (s *ParentService) ChildOverview(parentID, studentID uint) (*ChildOverview, error) {
	ok, err := s.access.IsParentOf(parentID, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.Forbidden("You are not linked to this student")
	}
	var student models.User
	if err := s.db.First(&student, studentID).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Student not found")
		}
		return nil, err
	}

	out := &ChildOverview{Student: utils.ToUserShort(&student)}
	if err := s.db.Preload("Course").
		Where("student_id = ?", studentID).
		Order("enrolled_at DESC").
		Find(&out.Enrollments).Error; err != nil {
		return nil, err
	}
	if out.AverageGrade, err = s.averageGrade(studentID); err != nil {
		return nil, err
	}
	if out.Attendance, err = s.sessions.Summary(studentID, 0); err != nil {
		return nil, err
	}
	return out, nil
}
