package services

import (
	"testing"
	"time"

	"learnhub_go/models"
	"learnhub_go/testutil"
	"learnhub_go/utils"
)

func TestCourseCapacityUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	course := testutil.CreateCourse(t, db, teacher.ID, 5)
	for i := 0; i < 3; i++ {
		s := testutil.CreateUser(t, db, models.RoleStudent)
		testutil.CreateEnrollment(t, db, s.ID, course.ID, models.EnrollmentActive)
	}
	dropped := testutil.CreateUser(t, db, models.RoleStudent)
	testutil.CreateEnrollment(t, db, dropped.ID, course.ID, models.EnrollmentDropped)

	svc := NewCourseService(db)
	tests := []struct {
		name string
		max  int
		code int
	}{
		{"below active count", 2, 400},
		{"equal to active count", 3, 0},
		{"zero", 0, 400},
		{"negative", -1, 400},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			max := tc.max
			got, err := svc.Update(teacher, course.ID, CourseUpdate{MaxStudents: &max})
			if code := utils.ErrorCode(err); code != tc.code {
				t.Fatalf("expected %d, got %d (%v)", tc.code, code, err)
			}
			if tc.code == 0 && got.MaxStudents != tc.max {
				t.Fatalf("expected max %d, got %d", tc.max, got.MaxStudents)
			}
		})
	}

	withCount, err := svc.Get(course.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if withCount.EnrolledCount != 3 {
		t.Fatalf("dropped enrollments must not count, got %d", withCount.EnrolledCount)
	}
}

func TestCourseCreateAndOwnership(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	other := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)

	svc := NewCourseService(db)
	course, err := svc.Create(admin, CourseInput{Title: "Algebra", InstructorID: teacher.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if course.InstructorID != teacher.ID || !course.Active || course.MaxStudents != models.DefaultMaxStudents {
		t.Fatalf("unexpected course %+v", course)
	}
	if _, err := svc.Create(admin, CourseInput{Title: "Biology", InstructorID: student.ID}); utils.ErrorCode(err) != 400 {
		t.Fatalf("expected 400 for a non-teacher instructor, got %v", err)
	}

	title := "Algebra II"
	if _, err := svc.Update(other, course.ID, CourseUpdate{Title: &title}); utils.ErrorCode(err) != 403 {
		t.Fatalf("expected 403 for another teacher, got %v", err)
	}
	if _, err := svc.Update(teacher, course.ID, CourseUpdate{InstructorID: &other.ID}); utils.ErrorCode(err) != 403 {
		t.Fatalf("expected 403 when a teacher reassigns the course, got %v", err)
	}
	got, err := svc.Update(teacher, course.ID, CourseUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title {
		t.Fatalf("expected %q, got %q", title, got.Title)
	}
}

func TestCourseDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	testutil.CreateEnrollment(t, db, student.ID, course.ID, models.EnrollmentActive)
	a := testutil.CreateAssignment(t, db, course.ID, time.Now().UTC().Add(time.Hour), 10)
	testutil.CreateSession(t, db, course.ID, time.Now().UTC(), models.SessionScheduled)
	if _, err := NewAssignmentService(db, nil).Submit(student.ID, a.ID, SubmissionInput{SubmissionText: "x"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	svc := NewCourseService(db)
	if err := svc.Delete(course.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for name, model := range map[string]interface{}{
		"enrollments":    &models.Enrollment{},
		"assignments":    &models.Assignment{},
		"submissions":    &models.Submission{},
		"class_sessions": &models.ClassSession{},
	} {
		var n int64
		db.Model(model).Count(&n)
		if n != 0 {
			t.Fatalf("expected %s to be removed, %d left", name, n)
		}
	}
	if err := svc.Delete(course.ID); utils.ErrorCode(err) != 404 {
		t.Fatalf("expected 404 deleting twice, got %v", err)
	}
}
