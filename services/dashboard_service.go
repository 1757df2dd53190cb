package services

import (
	"context"
	"database/sql"
	"time"

	"learnhub_go/models"
	"learnhub_go/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DashboardService builds per-role summaries. Every figure comes from its own
// query and the queries run concurrently, so totals are not a consistent snapshot.
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: utcNow}
}

type AdminDashboard struct {
	UsersByRole       map[string]int64 `json:"users_by_role"`
	ActiveUsers       int64            `json:"active_users"`
	Courses           int64            `json:"courses"`
	ActiveCourses     int64            `json:"active_courses"`
	ActiveEnrollments int64            `json:"active_enrollments"`
	UpcomingSessions  int64            `json:"upcoming_sessions"`
	PendingGrading    int64            `json:"pending_grading"`
}

type CourseAverage struct {
	CourseID     uint     `json:"course_id"`
	Title        string   `json:"title"`
	AverageGrade *float64 `json:"average_grade"`
}

type TeacherDashboard struct {
	Courses            int64                 `json:"courses"`
	ActiveStudents     int64                 `json:"active_students"`
	PendingSubmissions int64                 `json:"pending_submissions"`
	UpcomingSessions   []models.ClassSession `json:"upcoming_sessions"`
	CourseAverages     []CourseAverage       `json:"course_averages"`
}

type StudentDashboard struct {
	ActiveEnrollments    int64               `json:"active_enrollments"`
	CompletedEnrollments int64               `json:"completed_enrollments"`
	UpcomingAssignments  []models.Assignment `json:"upcoming_assignments"`
	AverageGrade         *float64            `json:"average_grade"`
	AttendanceRate       float64             `json:"attendance_rate"`
	UnreadNotifications  int64               `json:"unread_notifications"`
}

type ChildSummary struct {
	Student   *utils.UserShort  `json:"student"`
	Dashboard *StudentDashboard `json:"dashboard"`
}

type ParentDashboard struct {
	Children []ChildSummary `json:"children"`
}

const upcomingLimit = 10

func (s *DashboardService) count(ctx context.Context, model interface{}, dest *int64, query string, args ...interface{}) func() error {
	return func() error {
		q := s.db.WithContext(ctx).Model(model)
		if query != "" {
			q = q.Where(query, args...)
		}
		return q.Count(dest).Error
	}
}

func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	out := &AdminDashboard{UsersByRole: map[string]int64{}}
	now := s.now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var rows []struct {
			Role  string
			Total int64
		}
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Select("role, COUNT(*) AS total").
			Group("role").
			Scan(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			out.UsersByRole[r.Role] = r.Total
		}
		return nil
	})
	g.Go(s.count(ctx, &models.User{}, &out.ActiveUsers, "active = ?", true))
	g.Go(s.count(ctx, &models.Course{}, &out.Courses, ""))
	g.Go(s.count(ctx, &models.Course{}, &out.ActiveCourses, "active = ?", true))
	g.Go(s.count(ctx, &models.Enrollment{}, &out.ActiveEnrollments, "status = ?", models.EnrollmentActive))
	g.Go(s.count(ctx, &models.ClassSession{}, &out.UpcomingSessions, "status = ? AND start_time > ?", models.SessionScheduled, now))
	g.Go(s.count(ctx, &models.Submission{}, &out.PendingGrading, "grade IS NULL"))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) Teacher(ctx context.Context, teacherID uint) (*TeacherDashboard, error) {
	out := &TeacherDashboard{}
	now := s.now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(s.count(ctx, &models.Course{}, &out.Courses, "instructor_id = ?", teacherID))
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Enrollment{}).
			Joins("JOIN courses ON courses.id = enrollments.course_id").
			Where("courses.instructor_id = ? AND enrollments.status = ?", teacherID, models.EnrollmentActive).
			Distinct("enrollments.student_id").
			Count(&out.ActiveStudents).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Submission{}).
			Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
			Joins("JOIN courses ON courses.id = assignments.course_id").
			Where("courses.instructor_id = ? AND submissions.grade IS NULL", teacherID).
			Count(&out.PendingSubmissions).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).
			Joins("JOIN courses ON courses.id = class_sessions.course_id").
			Where("courses.instructor_id = ? AND class_sessions.status = ? AND class_sessions.start_time > ?",
				teacherID, models.SessionScheduled, now).
			Order("class_sessions.start_time ASC").
			Limit(upcomingLimit).
			Find(&out.UpcomingSessions).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Course{}).
			Select("courses.id AS course_id, courses.title AS title, AVG(submissions.grade) AS average_grade").
			Joins("LEFT JOIN assignments ON assignments.course_id = courses.id").
			Joins("LEFT JOIN submissions ON submissions.assignment_id = assignments.id AND submissions.grade IS NOT NULL").
			Where("courses.instructor_id = ?", teacherID).
			Group("courses.id, courses.title").
			Order("courses.id ASC").
			Scan(&out.CourseAverages).Error
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) Student(ctx context.Context, studentID uint) (*StudentDashboard, error) {
	out := &StudentDashboard{}
	now := s.now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(s.count(ctx, &models.Enrollment{}, &out.ActiveEnrollments, "student_id = ? AND status = ?", studentID, models.EnrollmentActive))
	g.Go(s.count(ctx, &models.Enrollment{}, &out.CompletedEnrollments, "student_id = ? AND status = ?", studentID, models.EnrollmentCompleted))
	g.Go(s.count(ctx, &models.Notification{}, &out.UnreadNotifications, "user_id = ? AND is_read = ?", studentID, false))
	g.Go(func() error {
		db := s.db.WithContext(ctx)
		return db.Model(&models.Assignment{}).
			Joins("JOIN enrollments ON enrollments.course_id = assignments.course_id").
			Where("enrollments.student_id = ? AND enrollments.status = ? AND assignments.due_date > ?",
				studentID, models.EnrollmentActive, now).
			Where("assignments.id NOT IN (?)", db.Model(&models.Submission{}).
				Select("assignment_id").
				Where("student_id = ?", studentID)).
			Order("assignments.due_date ASC").
			Limit(upcomingLimit).
			Find(&out.UpcomingAssignments).Error
	})
	g.Go(func() error {
		var avg sql.NullFloat64
		if err := s.db.WithContext(ctx).Model(&models.Submission{}).
			Select("AVG(grade)").
			Where("student_id = ? AND grade IS NOT NULL", studentID).
			Row().Scan(&avg); err != nil {
			return err
		}
		if avg.Valid {
			out.AverageGrade = &avg.Float64
		}
		return nil
	})
	g.Go(func() error {
		var rows []statusCount
		if err := s.db.WithContext(ctx).Model(&models.Attendance{}).
			Select("status, COUNT(*) AS total").
			Where("student_id = ?", studentID).
			Group("status").
			Scan(&rows).Error; err != nil {
			return err
		}
		out.AttendanceRate = summarize(rows).Rate
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parent builds a student dashboard for every linked child.
func (s *DashboardService) Parent(ctx context.Context, parentID uint) (*ParentDashboard, error) {
	var children []models.User
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN parent_students ON parent_students.student_id = users.id").
		Where("parent_students.parent_id = ?", parentID).
		Order("users.name ASC").
		Find(&children).Error; err != nil {
		return nil, err
	}

	out := &ParentDashboard{Children: make([]ChildSummary, len(children))}
	g, ctx := errgroup.WithContext(ctx)
	for i := range children {
		g.Go(func() error {
			dash, err := s.Student(ctx, children[i].ID)
			if err != nil {
				return err
			}
			out.Children[i] = ChildSummary{Student: utils.ToUserShort(&children[i]), Dashboard: dash}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
