package services

import (
	"strings"

	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseService struct {
	db     *gorm.DB
	access *AccessService
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db, access: NewAccessService(db)}
}

type CourseInput struct {
	Title        string  `json:"title" validate:"required,min=3,max=255"`
	Description  string  `json:"description"`
	Price        float64 `json:"price" validate:"gte=0"`
	MaxStudents  int     `json:"max_students" validate:"omitempty,gte=1"`
	InstructorID uint    `json:"instructor_id"`
	Active       *bool   `json:"active"`
}

type CourseUpdate struct {
	Title        *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	MaxStudents  *int     `json:"max_students" validate:"omitempty,gte=1"`
	InstructorID *uint    `json:"instructor_id"`
	Active       *bool    `json:"active"`
}

type CourseFilter struct {
	InstructorID    uint
	Search          string
	IncludeInactive bool
}

// CourseWithCount is a course plus its number of active enrollments.
type CourseWithCount struct {
	models.Course
	EnrolledCount int64 `json:"enrolled_count"`
}

// activeCounts returns the number of active enrollments per course id.
func (s *CourseService) activeCounts(courseIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		CourseID uint
		Total    int64
	}
	err := s.db.Model(&models.Enrollment{}).
		Select("course_id, COUNT(*) AS total").
		Where("course_id IN ? AND status = ?", courseIDs, models.EnrollmentActive).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.CourseID] = r.Total
	}
	return out, nil
}

func (s *CourseService) withCounts(courses []models.Course) ([]CourseWithCount, error) {
	ids := make([]uint, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	counts, err := s.activeCounts(ids)
	if err != nil {
		return nil, err
	}
	out := make([]CourseWithCount, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseWithCount{Course: c, EnrolledCount: counts[c.ID]})
	}
	return out, nil
}

func (s *CourseService) List(f CourseFilter, p utils.Paging) ([]CourseWithCount, int64, error) {
	query := s.db.Model(&models.Course{})
	if !f.IncludeInactive {
		query = query.Where("active = ?", true)
	}
	if f.InstructorID != 0 {
		query = query.Where("instructor_id = ?", f.InstructorID)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var courses []models.Course
	if err := query.Preload("Instructor").Order("id ASC").Offset(p.Offset).Limit(p.PerPage).Find(&courses).Error; err != nil {
		return nil, 0, err
	}
	rows, err := s.withCounts(courses)
	return rows, total, err
}

func (s *CourseService) Get(id uint) (*CourseWithCount, error) {
	var course models.Course
	if err := s.db.Preload("Instructor").First(&course, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Course not found")
		}
		return nil, err
	}
	rows, err := s.withCounts([]models.Course{course})
	if err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *CourseService) requireTeacher(id uint) error {
	var user models.User
	if err := s.db.Where("id = ? AND role IN ? AND active = ?", id, []string{models.RoleTeacher, models.RoleAdmin}, true).First(&user).Error; err != nil {
		if isNotFound(err) {
			return utils.BadRequest("Instructor must be an active teacher")
		}
		return err
	}
	return nil
}

// Create makes a course. Teachers always become the instructor of their course.
func (s *CourseService) Create(actor *models.User, in CourseInput) (*models.Course, error) {
	instructorID := actor.ID
	if actor.Role == models.RoleAdmin && in.InstructorID != 0 {
		instructorID = in.InstructorID
	}
	if err := s.requireTeacher(instructorID); err != nil {
		return nil, err
	}
	maxStudents := in.MaxStudents
	switch {
	case maxStudents < 0:
		return nil, utils.BadRequest("max_students must be at least 1")
	case maxStudents == 0:
		maxStudents = models.DefaultMaxStudents
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	course := models.Course{
		Title:        utils.SanitizeString(in.Title),
		Description:  in.Description,
		Price:        in.Price,
		MaxStudents:  maxStudents,
		InstructorID: instructorID,
		Active:       active,
	}
	if err := s.db.Create(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// Update edits a course. Capacity can never drop below the current active enrollment count.
func (s *CourseService) Update(actor *models.User, id uint, in CourseUpdate) (*models.Course, error) {
	if _, err := s.access.ManageCourse(actor, id); err != nil {
		return nil, err
	}
	if in.InstructorID != nil {
		if actor.Role != models.RoleAdmin && *in.InstructorID != actor.ID {
			return nil, utils.Forbidden("Only admins can reassign the instructor")
		}
		if err := s.requireTeacher(*in.InstructorID); err != nil {
			return nil, err
		}
	}

	var course models.Course
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&course, id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.Title != nil {
			updates["title"] = utils.SanitizeString(*in.Title)
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Price != nil {
			updates["price"] = *in.Price
		}
		if in.Active != nil {
			updates["active"] = *in.Active
		}
		if in.InstructorID != nil {
			updates["instructor_id"] = *in.InstructorID
		}
		if in.MaxStudents != nil {
			if *in.MaxStudents < 1 {
				return utils.BadRequest("max_students must be at least 1")
			}
			var active int64
			if err := tx.Model(&models.Enrollment{}).
				Where("course_id = ? AND status = ?", id, models.EnrollmentActive).
				Count(&active).Error; err != nil {
				return err
			}
			if int64(*in.MaxStudents) < active {
				return utils.BadRequest("max_students cannot be lower than the %d active enrollments", active)
			}
			updates["max_students"] = *in.MaxStudents
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&course).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.Preload("Instructor").First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes the course row. Enrollments, assignments, sessions and
// contents go with it through ON DELETE CASCADE.
func (s *CourseService) Delete(id uint) error {
	res := s.db.Delete(&models.Course{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Course not found")
	}
	return nil
}

// Students lists users with a non-dropped enrollment in the course.
func (s *CourseService) Students(courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.Preload("Student").
		Where("course_id = ? AND status <> ?", courseID, models.EnrollmentDropped).
		Order("enrolled_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}
