package services

import (
	"context"
	"testing"
	"time"

	"learnhub_go/models"
	"learnhub_go/testutil"
)

func TestDashboards(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	parent := testutil.CreateUser(t, db, models.RoleParent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	testutil.CreateEnrollment(t, db, student.ID, course.ID, models.EnrollmentActive)
	testutil.LinkParent(t, db, parent.ID, student.ID)

	now := time.Now().UTC()
	done := testutil.CreateAssignment(t, db, course.ID, now.Add(24*time.Hour), 100)
	testutil.CreateAssignment(t, db, course.ID, now.Add(48*time.Hour), 100)
	testutil.CreateSession(t, db, course.ID, now.Add(2*time.Hour), models.SessionScheduled)

	assignments := NewAssignmentService(db, nil)
	res, err := assignments.Submit(student.ID, done.ID, SubmissionInput{SubmissionText: "done"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	svc := NewDashboardService(db)
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		dash, err := svc.Admin(ctx)
		if err != nil {
			t.Fatalf("admin: %v", err)
		}
		if dash.UsersByRole[models.RoleStudent] != 1 || dash.ActiveEnrollments != 1 || dash.UpcomingSessions != 1 || dash.PendingGrading != 1 {
			t.Fatalf("unexpected admin dashboard %+v", dash)
		}
		if dash.ActiveUsers != 4 {
			t.Fatalf("expected 4 active users, got %d (admin %d)", dash.ActiveUsers, admin.ID)
		}
	})

	t.Run("teacher", func(t *testing.T) {
		dash, err := svc.Teacher(ctx, teacher.ID)
		if err != nil {
			t.Fatalf("teacher: %v", err)
		}
		if dash.Courses != 1 || dash.ActiveStudents != 1 || dash.PendingSubmissions != 1 || len(dash.UpcomingSessions) != 1 {
			t.Fatalf("unexpected teacher dashboard %+v", dash)
		}
	})

	if _, err := assignments.Grade(teacher, res.Submission.ID, GradeInput{Grade: 90}); err != nil {
		t.Fatalf("grade: %v", err)
	}

	t.Run("student", func(t *testing.T) {
		dash, err := svc.Student(ctx, student.ID)
		if err != nil {
			t.Fatalf("student: %v", err)
		}
		// the submitted assignment is no longer upcoming
		if len(dash.UpcomingAssignments) != 1 || dash.UpcomingAssignments[0].ID == done.ID {
			t.Fatalf("unexpected upcoming assignments %+v", dash.UpcomingAssignments)
		}
		if dash.AverageGrade == nil || *dash.AverageGrade != 90 {
			t.Fatalf("expected average 90, got %v", dash.AverageGrade)
		}
	})

	t.Run("parent", func(t *testing.T) {
		dash, err := svc.Parent(ctx, parent.ID)
		if err != nil {
			t.Fatalf("parent: %v", err)
		}
		if len(dash.Children) != 1 || dash.Children[0].Student.ID != student.ID || dash.Children[0].Dashboard.ActiveEnrollments != 1 {
			t.Fatalf("unexpected parent dashboard %+v", dash)
		}
	})
}
