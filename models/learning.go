package models

import "time"

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
)

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// Session statuses
const (
	SessionScheduled  = "scheduled"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
)

// Content types
const (
	ContentText  = "text"
	ContentVideo = "video"
	ContentPDF   = "pdf"
	ContentLink  = "link"
)

// DefaultMaxStudents is the capacity of a course created without one.
const DefaultMaxStudents = 30

// Course model
type Course struct {
	BaseModel
	Title        string  `json:"title" gorm:"size:255;not null"`
	Description  string  `json:"description" gorm:"type:text"`
	Price        float64 `json:"price" gorm:"not null;default:0"`
	MaxStudents  int     `json:"max_students" gorm:"not null;default:30"`
	InstructorID uint    `json:"instructor_id" gorm:"not null;index"`
	Active       bool    `json:"active" gorm:"not null"`

	// Relationships
	Instructor *User `json:"instructor,omitempty" gorm:"foreignKey:InstructorID"`
}

// Enrollment joins a student to a course. One row per (student, course);
// re-enrolling reactivates the existing row.
type Enrollment struct {
	BaseModel
	StudentID   uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_enrollment_student_course"`
	CourseID    uint       `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_student_course;index"`
	Status      string     `json:"status" gorm:"size:20;not null;default:active;index"`
	Progress    float64    `json:"progress" gorm:"not null;default:0"`
	FinalGrade  *float64   `json:"final_grade"`
	EnrolledAt  time.Time  `json:"enrolled_at" gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at"`
	DroppedAt   *time.Time `json:"dropped_at"`

	// Relationships
	Student *User   `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Course  *Course `json:"course,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

// Assignment model
type Assignment struct {
	BaseModel
	CourseID    uint      `json:"course_id" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Type        string    `json:"type" gorm:"size:20;not null;default:homework"` // homework, quiz, project, exam
	DueDate     time.Time `json:"due_date" gorm:"not null;index"`
	MaxPoints   float64   `json:"max_points" gorm:"not null;default:100"`
	CreatedBy   uint      `json:"created_by"`

	// Relationships
	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

// Submission model. One row per (assignment, student); resubmitting updates it.
type Submission struct {
	BaseModel
	AssignmentID   uint       `json:"assignment_id" gorm:"not null;uniqueIndex:idx_submission_assignment_student"`
	StudentID      uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_submission_assignment_student;index"`
	SubmissionText string     `json:"submission_text" gorm:"type:text"`
	FileURL        string     `json:"file_url" gorm:"size:500"`
	SubmittedAt    time.Time  `json:"submitted_at" gorm:"not null"`
	IsLate         bool       `json:"is_late" gorm:"not null;default:false"`
	Grade          *float64   `json:"grade"`
	Feedback       string     `json:"feedback" gorm:"type:text"`
	GradedAt       *time.Time `json:"graded_at"`
	GradedBy       *uint      `json:"graded_by"`

	// Relationships
	Assignment *Assignment `json:"assignment,omitempty" gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`
	Student    *User       `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// ClassSession is a scheduled meeting of a course.
type ClassSession struct {
	BaseModel
	CourseID       uint       `json:"course_id" gorm:"not null;index"`
	Title          string     `json:"title" gorm:"size:255;not null"`
	Description    string     `json:"description" gorm:"type:text"`
	StartTime      time.Time  `json:"start_time" gorm:"not null;index"`
	EndTime        time.Time  `json:"end_time" gorm:"not null"`
	MeetingURL     string     `json:"meeting_url" gorm:"size:500"`
	Location       string     `json:"location" gorm:"size:255"`
	Status         string     `json:"status" gorm:"size:20;not null;default:scheduled;index"`
	ReminderSentAt *time.Time `json:"-"`

	// Relationships
	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

// Attendance of one student at one session.
type Attendance struct {
	BaseModel
	SessionID uint      `json:"session_id" gorm:"not null;uniqueIndex:idx_attendance_session_student"`
	StudentID uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_attendance_session_student;index"`
	Status    string    `json:"status" gorm:"size:20;not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	MarkedAt  time.Time `json:"marked_at" gorm:"not null"`
	MarkedBy  uint      `json:"marked_by"`

	// Relationships
	Session *ClassSession `json:"session,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Student *User         `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Content is an ordered learning material of a course.
type Content struct {
	BaseModel
	CourseID   uint   `json:"course_id" gorm:"not null;index"`
	Title      string `json:"title" gorm:"size:255;not null"`
	Type       string `json:"type" gorm:"size:20;not null"` // text, video, pdf, link
	Body       string `json:"body" gorm:"type:text"`
	URL        string `json:"url" gorm:"size:1000"`
	FileSize   int64  `json:"file_size"`
	OrderIndex int    `json:"order_index" gorm:"not null;default:0;index"`
	Published  bool   `json:"published" gorm:"not null"`

	// Relationships
	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}
