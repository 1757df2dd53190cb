// Package testutil opens throwaway databases and builds fixtures for package tests.
package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"learnhub_go/database"
	"learnhub_go/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq int64

func next() int64 {
	return atomic.AddInt64(&seq, 1)
}

// NewDB returns a migrated in-memory SQLite database with foreign keys enforced.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", next())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts an active user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()
	n := next()
	u := &models.User{
		Name:     fmt.Sprintf("%s %d", role, n),
		Email:    fmt.Sprintf("%s%d@example.com", role, n),
		Password: PasswordHash(t),
		Role:     role,
		Active:   true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateCourse inserts an active course taught by instructorID. A
// maxStudents of 0 gets models.DefaultMaxStudents.
func CreateCourse(t *testing.T, db *gorm.DB, instructorID uint, maxStudents int) *models.Course {
	t.Helper()
	if maxStudents == 0 {
		maxStudents = models.DefaultMaxStudents
	}
	c := &models.Course{
		Title:        fmt.Sprintf("Course %d", next()),
		Description:  "fixture",
		Price:        10,
		MaxStudents:  maxStudents,
		InstructorID: instructorID,
		Active:       true,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

func CreateEnrollment(t *testing.T, db *gorm.DB, studentID, courseID uint, status string) *models.Enrollment {
	t.Helper()
	e := &models.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     status,
		EnrolledAt: time.Now().UTC(),
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("create enrollment: %v", err)
	}
	return e
}

func CreateAssignment(t *testing.T, db *gorm.DB, courseID uint, due time.Time, maxPoints float64) *models.Assignment {
	t.Helper()
	a := &models.Assignment{
		CourseID:  courseID,
		Title:     fmt.Sprintf("Assignment %d", next()),
		Type:      "homework",
		DueDate:   due,
		MaxPoints: maxPoints,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return a
}

func CreateSession(t *testing.T, db *gorm.DB, courseID uint, start time.Time, status string) *models.ClassSession {
	t.Helper()
	s := &models.ClassSession{
		CourseID:  courseID,
		Title:     fmt.Sprintf("Session %d", next()),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    status,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func LinkParent(t *testing.T, db *gorm.DB, parentID, studentID uint) *models.ParentStudent {
	t.Helper()
	l := &models.ParentStudent{ParentID: parentID, StudentID: studentID}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("link parent: %v", err)
	}
	return l
}

var (
	hashOnce sync.Once
	hash     string
	hashErr  error
)

// PasswordHash returns a min-cost bcrypt hash of Password so fixtures stay fast.
func PasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		var b []byte
		b, hashErr = bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		hash = string(b)
	})
	if hashErr != nil {
		t.Fatalf("hash password: %v", hashErr)
	}
	return hash
}

// Password is the plain password of every fixture user.
const Password = "password"
