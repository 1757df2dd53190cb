package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"learnhub_go/models"
	"learnhub_go/services/notifications"
	"learnhub_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentService struct {
	db       *gorm.DB
	access   *AccessService
	notifier Notifier
	now      func() time.Time
}

func NewAssignmentService(db *gorm.DB, notifier Notifier) *AssignmentService {
	return &AssignmentService{db: db, access: NewAccessService(db), notifier: notifier, now: utcNow}
}

type AssignmentInput struct {
	CourseID    uint      `json:"course_id" validate:"required"`
	Title       string    `json:"title" validate:"required,min=3,max=255"`
	Description string    `json:"description"`
	Type        string    `json:"type" validate:"omitempty,oneof=homework quiz project exam"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   float64   `json:"max_points" validate:"omitempty,gt=0"`
}

type AssignmentUpdate struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string    `json:"description"`
	Type        *string    `json:"type" validate:"omitempty,oneof=homework quiz project exam"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   *float64   `json:"max_points" validate:"omitempty,gt=0"`
}

type SubmissionInput struct {
	SubmissionText string `json:"submission_text"`
	FileURL        string `json:"file_url" validate:"omitempty,url"`
}

type GradeInput struct {
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

// SubmitResult is a stored submission plus whether it arrived after the due date.
type SubmitResult struct {
	Submission *models.Submission `json:"submission"`
	IsPastDue  bool               `json:"isPastDue"`
}

// CourseGrade is the average of a student's graded submissions in one course.
type CourseGrade struct {
	CourseID     uint    `json:"course_id"`
	CourseTitle  string  `json:"course_title"`
	Graded       int64   `json:"graded"`
	AverageGrade float64 `json:"average_grade"`
}

type StudentGrades struct {
	Submissions []models.Submission `json:"submissions"`
	Courses     []CourseGrade       `json:"courses"`
}

// List returns assignments visible to the user. Students only see courses
// they are actively enrolled in; teachers only their own courses.
func (s *AssignmentService) List(user *models.User, courseID uint, p utils.Paging) ([]models.Assignment, int64, error) {
	query := s.db.Model(&models.Assignment{})
	switch user.Role {
	case models.RoleStudent:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Enrollment{}).
			Select("course_id").
			Where("student_id = ? AND status = ?", user.ID, models.EnrollmentActive))
	case models.RoleTeacher:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Course{}).
			Select("id").
			Where("instructor_id = ?", user.ID))
	case models.RoleParent:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Enrollment{}).
			Select("enrollments.course_id").
			Joins("JOIN parent_students ON parent_students.student_id = enrollments.student_id").
			Where("parent_students.parent_id = ? AND enrollments.status = ?", user.ID, models.EnrollmentActive))
	}
	if courseID != 0 {
		query = query.Where("course_id = ?", courseID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Assignment
	err := query.Preload("Course").Order("due_date ASC").Offset(p.Offset).Limit(p.PerPage).Find(&list).Error
	return list, total, err
}

func (s *AssignmentService) load(id uint) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.db.Preload("Course").First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Assignment not found")
		}
		return nil, err
	}
	return &a, nil
}

func (s *AssignmentService) Get(user *models.User, id uint) (*models.Assignment, error) {
	a, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ViewCourse(user, a.CourseID); err != nil {
		return nil, err
	}
	return a, nil
}

// Create adds an assignment and tells the actively enrolled students.
func (s *AssignmentService) Create(actor *models.User, in AssignmentInput) (*models.Assignment, error) {
	course, err := s.access.ManageCourse(actor, in.CourseID)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = "homework"
	}
	if !utils.IsValidAssignmentType(in.Type) {
		return nil, utils.BadRequest("Invalid assignment type")
	}
	if in.MaxPoints == 0 {
		in.MaxPoints = 100
	}
	a := models.Assignment{
		CourseID:    in.CourseID,
		Title:       utils.SanitizeString(in.Title),
		Description: in.Description,
		Type:        in.Type,
		DueDate:     in.DueDate.UTC(),
		MaxPoints:   in.MaxPoints,
		CreatedBy:   actor.ID,
	}
	if err := s.db.Create(&a).Error; err != nil {
		return nil, err
	}

	var studentIDs []uint
	if err := s.db.Model(&models.Enrollment{}).
		Where("course_id = ? AND status = ?", in.CourseID, models.EnrollmentActive).
		Pluck("student_id", &studentIDs).Error; err != nil {
		return nil, err
	}
	notify(s.notifier, studentIDs, notifications.NewWithData(
		"New assignment",
		fmt.Sprintf("%s: %s is due %s.", course.Title, a.Title, a.DueDate.Format("2006-01-02 15:04 MST")),
		models.NotificationAssignment,
		map[string]uint{"assignment_id": a.ID, "course_id": a.CourseID}))

	a.Course = course
	return &a, nil
}

func (s *AssignmentService) Update(actor *models.User, id uint, in AssignmentUpdate) (*models.Assignment, error) {
	a, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, a.CourseID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = utils.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Type != nil {
		if !utils.IsValidAssignmentType(*in.Type) {
			return nil, utils.BadRequest("Invalid assignment type")
		}
		updates["type"] = *in.Type
	}
	if in.DueDate != nil {
		updates["due_date"] = in.DueDate.UTC()
	}
	if in.MaxPoints != nil {
		var maxGrade sql.NullFloat64
		if err := s.db.Model(&models.Submission{}).
			Select("MAX(grade)").
			Where("assignment_id = ? AND grade IS NOT NULL", id).
			Row().Scan(&maxGrade); err != nil {
			return nil, err
		}
		if maxGrade.Valid && maxGrade.Float64 > *in.MaxPoints {
			return nil, utils.BadRequest("max_points cannot be lower than an existing grade (%.2f)", maxGrade.Float64)
		}
		updates["max_points"] = *in.MaxPoints
	}
	if len(updates) > 0 {
		if err := s.db.Model(a).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

func (s *AssignmentService) Delete(actor *models.User, id uint) error {
	a, err := s.load(id)
	if err != nil {
		return err
	}
	if _, err := s.access.ManageCourse(actor, a.CourseID); err != nil {
		return err
	}
	return s.db.Delete(&models.Assignment{}, id).Error
}

// Submit stores the student's work. A second submission overwrites the first
// and keeps any grade already given. Late work is accepted and flagged.
func (s *AssignmentService) Submit(studentID, assignmentID uint, in SubmissionInput) (*SubmitResult, error) {
	text := strings.TrimSpace(in.SubmissionText)
	if text == "" && in.FileURL == "" {
		return nil, utils.BadRequest("Submission needs text or a file")
	}

	var a models.Assignment
	err := s.db.Model(&models.Assignment{}).
		Select("assignments.*").
		Joins("JOIN enrollments ON enrollments.course_id = assignments.course_id").
		Where("assignments.id = ? AND enrollments.student_id = ? AND enrollments.status = ?",
			assignmentID, studentID, models.EnrollmentActive).
		First(&a).Error
	if err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Assignment not found or not enrolled in its course")
		}
		return nil, err
	}

	now := s.now()
	pastDue := a.DueDate.Before(now)
	sub := models.Submission{
		AssignmentID:   assignmentID,
		StudentID:      studentID,
		SubmissionText: text,
		FileURL:        in.FileURL,
		SubmittedAt:    now,
		IsLate:         pastDue,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"submission_text", "file_url", "submitted_at", "is_late", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return nil, err
	}

	var stored models.Submission
	if err := s.db.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &SubmitResult{Submission: &stored, IsPastDue: pastDue}, nil
}

// Submissions lists every submission of an assignment for its course manager.
func (s *AssignmentService) Submissions(actor *models.User, assignmentID uint) ([]models.Submission, error) {
	a, err := s.load(assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, a.CourseID); err != nil {
		return nil, err
	}
	var list []models.Submission
	err = s.db.Preload("Student").
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at ASC").
		Find(&list).Error
	return list, err
}

// Grade records a grade in the range 0..maxPoints and notifies the student.
func (s *AssignmentService) Grade(actor *models.User, submissionID uint, in GradeInput) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.Preload("Assignment").First(&sub, submissionID).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Submission not found")
		}
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, sub.Assignment.CourseID); err != nil {
		return nil, err
	}
	if in.Grade < 0 || in.Grade > sub.Assignment.MaxPoints {
		return nil, utils.BadRequest("Grade must be between 0 and %.2f", sub.Assignment.MaxPoints)
	}

	now := s.now()
	if err := s.db.Model(&sub).Updates(map[string]interface{}{
		"grade":     in.Grade,
		"feedback":  in.Feedback,
		"graded_at": now,
		"graded_by": actor.ID,
	}).Error; err != nil {
		return nil, err
	}

	notify(s.notifier, []uint{sub.StudentID}, notifications.NewWithData(
		"Assignment graded",
		fmt.Sprintf("%s: %.2f / %.2f", sub.Assignment.Title, in.Grade, sub.Assignment.MaxPoints),
		models.NotificationGrade,
		map[string]uint{"assignment_id": sub.AssignmentID, "submission_id": sub.ID}))

	grade := in.Grade
	grader := actor.ID
	sub.Grade = &grade
	sub.Feedback = in.Feedback
	sub.GradedAt = &now
	sub.GradedBy = &grader
	return &sub, nil
}

// StudentGrades returns a student's graded submissions with a per-course average.
func (s *AssignmentService) StudentGrades(studentID uint) (*StudentGrades, error) {
	out := &StudentGrades{}
	if err := s.db.Preload("Assignment").
		Where("student_id = ? AND grade IS NOT NULL", studentID).
		Order("graded_at DESC").
		Find(&out.Submissions).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Submission{}).
		Select("courses.id AS course_id, courses.title AS course_title, COUNT(*) AS graded, AVG(submissions.grade) AS average_grade").
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Joins("JOIN courses ON courses.id = assignments.course_id").
		Where("submissions.student_id = ? AND submissions.grade IS NOT NULL", studentID).
		Group("courses.id, courses.title").
		Order("courses.id ASC").
		Scan(&out.Courses).Error; err != nil {
		return nil, err
	}
	return out, nil
}
