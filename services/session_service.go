package services

import (
	"time"

	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionService struct {
	db     *gorm.DB
	access *AccessService
	now    func() time.Time
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db, access: NewAccessService(db), now: utcNow}
}

type SessionInput struct {
	CourseID    uint      `json:"course_id" validate:"required"`
	Title       string    `json:"title" validate:"required,min=3,max=255"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	MeetingURL  string    `json:"meeting_url" validate:"omitempty,url"`
	Location    string    `json:"location" validate:"omitempty,max=255"`
}

type SessionUpdate struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	MeetingURL  *string    `json:"meeting_url" validate:"omitempty,url"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
}

type SessionFilter struct {
	CourseID uint
	Status   string
	From     *time.Time
	To       *time.Time
}

type AttendanceRecord struct {
	StudentID uint   `json:"studentId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     string `json:"notes"`
}

type BulkAttendanceInput struct {
	Records []AttendanceRecord `json:"records" validate:"required,min=1,dive"`
}

// AttendanceSummary counts a student's attendance rows by status.
type AttendanceSummary struct {
	Total   int64   `json:"total"`
	Present int64   `json:"present"`
	Absent  int64   `json:"absent"`
	Late    int64   `json:"late"`
	Excused int64   `json:"excused"`
	Rate    float64 `json:"attendance_rate"`
}

type StudentAttendance struct {
	Records []models.Attendance `json:"records"`
	Summary AttendanceSummary   `json:"summary"`
}

// sessionTransitions lists the allowed status moves.
var sessionTransitions = map[string][]string{
	models.SessionScheduled:  {models.SessionInProgress, models.SessionCancelled},
	models.SessionInProgress: {models.SessionCompleted},
}

func canTransition(from, to string) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// List returns sessions the user can see, ordered by start time.
func (s *SessionService) List(user *models.User, f SessionFilter, p utils.Paging) ([]models.ClassSession, int64, error) {
	query := s.db.Model(&models.ClassSession{})
	switch user.Role {
	case models.RoleStudent:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Enrollment{}).
			Select("course_id").
			Where("student_id = ? AND status <> ?", user.ID, models.EnrollmentDropped))
	case models.RoleTeacher:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Course{}).
			Select("id").
			Where("instructor_id = ?", user.ID))
	case models.RoleParent:
		query = query.Where("course_id IN (?)", s.db.Model(&models.Enrollment{}).
			Select("enrollments.course_id").
			Joins("JOIN parent_students ON parent_students.student_id = enrollments.student_id").
			Where("parent_students.parent_id = ? AND enrollments.status <> ?", user.ID, models.EnrollmentDropped))
	}
	if f.CourseID != 0 {
		query = query.Where("course_id = ?", f.CourseID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.From != nil {
		query = query.Where("start_time >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("start_time <= ?", f.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.ClassSession
	err := query.Preload("Course").Order("start_time ASC").Offset(p.Offset).Limit(p.PerPage).Find(&list).Error
	return list, total, err
}

func (s *SessionService) load(id uint) (*models.ClassSession, error) {
	var session models.ClassSession
	if err := s.db.Preload("Course").First(&session, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Get(user *models.User, id uint) (*models.ClassSession, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ViewCourse(user, session.CourseID); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) Create(actor *models.User, in SessionInput) (*models.ClassSession, error) {
	if _, err := s.access.ManageCourse(actor, in.CourseID); err != nil {
		return nil, err
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, utils.BadRequest("end_time must be after start_time")
	}
	session := models.ClassSession{
		CourseID:    in.CourseID,
		Title:       utils.SanitizeString(in.Title),
		Description: in.Description,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		MeetingURL:  in.MeetingURL,
		Location:    in.Location,
		Status:      models.SessionScheduled,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Update(actor *models.User, id uint, in SessionUpdate) (*models.ClassSession, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, session.CourseID); err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted || session.Status == models.SessionCancelled {
		return nil, utils.BadRequest("Session is %s and can no longer be edited", session.Status)
	}

	start, end := session.StartTime, session.EndTime
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = utils.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.StartTime != nil {
		start = in.StartTime.UTC()
		updates["start_time"] = start
		updates["reminder_sent_at"] = nil
	}
	if in.EndTime != nil {
		end = in.EndTime.UTC()
		updates["end_time"] = end
	}
	if !end.After(start) {
		return nil, utils.BadRequest("end_time must be after start_time")
	}
	if in.MeetingURL != nil {
		updates["meeting_url"] = *in.MeetingURL
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if len(updates) > 0 {
		if err := s.db.Model(session).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

// UpdateStatus moves a session along scheduled -> in_progress -> completed,
// or scheduled -> cancelled.
func (s *SessionService) UpdateStatus(actor *models.User, id uint, status string) (*models.ClassSession, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, session.CourseID); err != nil {
		return nil, err
	}
	if !canTransition(session.Status, status) {
		return nil, utils.BadRequest("Cannot move session from %s to %s", session.Status, status)
	}
	if err := s.db.Model(session).Update("status", status).Error; err != nil {
		return nil, err
	}
	session.Status = status
	return session, nil
}

func (s *SessionService) Delete(actor *models.User, id uint) error {
	session, err := s.load(id)
	if err != nil {
		return err
	}
	if _, err := s.access.ManageCourse(actor, session.CourseID); err != nil {
		return err
	}
	return s.db.Delete(&models.ClassSession{}, id).Error
}

// dedupeRecords keeps the last record for each student, in first-seen order.
func dedupeRecords(records []AttendanceRecord) []AttendanceRecord {
	index := make(map[uint]int, len(records))
	out := make([]AttendanceRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.StudentID]; ok {
			out[i] = r
			continue
		}
		index[r.StudentID] = len(out)
		out = append(out, r)
	}
	return out
}

// BulkAttendance upserts one attendance row per (session, student) inside a
// single transaction. Marking a student twice overwrites the earlier row.
func (s *SessionService) BulkAttendance(actor *models.User, sessionID uint, records []AttendanceRecord) ([]models.Attendance, error) {
	if len(records) == 0 {
		return nil, utils.BadRequest("No attendance records given")
	}
	for _, r := range records {
		if r.StudentID == 0 {
			return nil, utils.BadRequest("studentId is required")
		}
		if !utils.IsValidAttendanceStatus(r.Status) {
			return nil, utils.BadRequest("Invalid attendance status %q", r.Status)
		}
	}
	records = dedupeRecords(records)

	session, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, session.CourseID); err != nil {
		return nil, err
	}

	studentIDs := make([]uint, 0, len(records))
	for _, r := range records {
		studentIDs = append(studentIDs, r.StudentID)
	}

	var stored []models.Attendance
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var enrolled int64
		if err := tx.Model(&models.Enrollment{}).
			Where("course_id = ? AND student_id IN ? AND status <> ?", session.CourseID, studentIDs, models.EnrollmentDropped).
			Count(&enrolled).Error; err != nil {
			return err
		}
		if enrolled != int64(len(studentIDs)) {
			return utils.BadRequest("Every student must be enrolled in the session's course")
		}

		now := s.now()
		rows := make([]models.Attendance, 0, len(records))
		for _, r := range records {
			rows = append(rows, models.Attendance{
				SessionID: sessionID,
				StudentID: r.StudentID,
				Status:    r.Status,
				Notes:     r.Notes,
				MarkedAt:  now,
				MarkedBy:  actor.ID,
			})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "marked_at", "marked_by", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return err
		}

		return tx.Where("session_id = ? AND student_id IN ?", sessionID, studentIDs).
			Order("student_id ASC").
			Find(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SessionService) SessionAttendance(actor *models.User, sessionID uint) ([]models.Attendance, error) {
	session, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, session.CourseID); err != nil {
		return nil, err
	}
	var list []models.Attendance
	err = s.db.Preload("Student").Where("session_id = ?", sessionID).Order("student_id ASC").Find(&list).Error
	return list, err
}

// Summary counts a student's attendance rows by status, optionally for one course.
func (s *SessionService) Summary(studentID, courseID uint) (AttendanceSummary, error) {
	var rows []statusCount
	query := s.db.Model(&models.Attendance{}).
		Select("attendances.status AS status, COUNT(*) AS total").
		Where("attendances.student_id = ?", studentID)
	if courseID != 0 {
		query = query.Joins("JOIN class_sessions ON class_sessions.id = attendances.session_id").
			Where("class_sessions.course_id = ?", courseID)
	}
	if err := query.Group("attendances.status").Scan(&rows).Error; err != nil {
		return AttendanceSummary{}, err
	}
	return summarize(rows), nil
}

type statusCount struct {
	Status string
	Total  int64
}

func summarize(rows []statusCount) AttendanceSummary {
	var sum AttendanceSummary
	for _, r := range rows {
		sum.Total += r.Total
		switch r.Status {
		case models.AttendancePresent:
			sum.Present = r.Total
		case models.AttendanceAbsent:
			sum.Absent = r.Total
		case models.AttendanceLate:
			sum.Late = r.Total
		case models.AttendanceExcused:
			sum.Excused = r.Total
		}
	}
	if sum.Total > 0 {
		// late still counts as attended
		sum.Rate = float64(sum.Present+sum.Late) / float64(sum.Total) * 100
	}
	return sum
}

func (s *SessionService) StudentAttendance(studentID uint) (*StudentAttendance, error) {
	out := &StudentAttendance{}
	if err := s.db.Preload("Session").
		Where("student_id = ?", studentID).
		Order("marked_at DESC").
		Find(&out.Records).Error; err != nil {
		return nil, err
	}
	summary, err := s.Summary(studentID, 0)
	if err != nil {
		return nil, err
	}
	out.Summary = summary
	return out, nil
}
