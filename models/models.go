package models

import (
	"database/sql/driver"
	"time"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// Base model with common fields. Rows are never soft-deleted: users are
// deactivated and course removal relies on foreign-key cascades.
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j.IsNull() {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User model
type User struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	Phone    string `json:"phone" gorm:"size:20"`
	LineID   string `json:"line_id" gorm:"size:100"`
	Role     string `json:"role" gorm:"size:20;not null;default:student;index"` // admin, teacher, student, parent
	Active   bool   `json:"active" gorm:"not null"`
	Avatar   string `json:"avatar" gorm:"size:500"`
}

// ParentStudent links a parent account to a student account.
type ParentStudent struct {
	BaseModel
	ParentID     uint   `json:"parent_id" gorm:"not null;uniqueIndex:idx_parent_student"`
	StudentID    uint   `json:"student_id" gorm:"not null;uniqueIndex:idx_parent_student;index"`
	Relationship string `json:"relationship" gorm:"size:50"` // mother, father, guardian...

	// Relationships
	Parent  *User `json:"parent,omitempty" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Student *User `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id" gorm:"index"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}

// Notification types
const (
	NotificationInfo       = "info"
	NotificationWarning    = "warning"
	NotificationSuccess    = "success"
	NotificationError      = "error"
	NotificationAssignment = "assignment"
	NotificationGrade      = "grade"
	NotificationEnrollment = "enrollment"
	NotificationSession    = "session"
)

// Notification model
type Notification struct {
	BaseModel
	UserID   uint       `json:"user_id" gorm:"not null;index"`
	Title    string     `json:"title" gorm:"size:255;not null"`
	Message  string     `json:"message" gorm:"type:text;not null"`
	Type     string     `json:"type" gorm:"size:30;not null;default:info"`
	Read     bool       `json:"read" gorm:"column:is_read;not null;default:false"`
	ReadAt   *time.Time `json:"read_at"`
	Channels JSON       `json:"channels" gorm:"type:json"`
	Data     JSON       `json:"data,omitempty" gorm:"type:json"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:20;not null;default:pending"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
