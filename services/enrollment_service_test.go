package services

import (
	"sync"
	"testing"

	"learnhub_go/models"
	"learnhub_go/services/notifications"
	"learnhub_go/testutil"
	"learnhub_go/utils"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Payload
	to   map[uint]int
}

func (n *recordingNotifier) EnqueueOrCreate(userIDs []uint, p notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.to == nil {
		n.to = map[uint]int{}
	}
	p.UserIDs = userIDs
	n.sent = append(n.sent, p)
	for _, id := range userIDs {
		n.to[id]++
	}
	return nil
}

func (n *recordingNotifier) count(userID uint) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.to[userID]
}

func TestEnrollCreatesActiveEnrollment(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	rec := &recordingNotifier{}

	svc := NewEnrollmentService(db, rec)
	e, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if e.Status != models.EnrollmentActive || e.Progress != 0 {
		t.Fatalf("unexpected enrollment %+v", e)
	}
	if rec.count(student.ID) != 1 || rec.count(teacher.ID) != 1 {
		t.Fatalf("expected student and instructor notified, got %v", rec.to)
	}
}

func TestEnrollTwiceConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)

	svc := NewEnrollmentService(db, nil)
	if _, err := svc.Enroll(student.ID, course.ID); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	_, err := svc.Enroll(student.ID, course.ID)
	if code := utils.ErrorCode(err); code != 409 {
		t.Fatalf("expected 409, got %d (%v)", code, err)
	}
}

func TestReenrollAfterDropReusesRow(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)

	svc := NewEnrollmentService(db, nil)
	first, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := svc.UpdateProgress(first.ID, 40); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := svc.Drop(student.ID, course.ID); err != nil {
		t.Fatalf("drop: %v", err)
	}

	again, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected row %d reused, got %d", first.ID, again.ID)
	}
	if again.Status != models.EnrollmentActive || again.Progress != 0 || again.DroppedAt != nil {
		t.Fatalf("row not reset: %+v", again)
	}

	var rows int64
	db.Model(&models.Enrollment{}).Where("student_id = ? AND course_id = ?", student.ID, course.ID).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one enrollment row, got %d", rows)
	}
}

func TestEnrollRespectsCapacity(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	a := testutil.CreateUser(t, db, models.RoleStudent)
	b := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 1)

	svc := NewEnrollmentService(db, nil)
	if _, err := svc.Enroll(a.ID, course.ID); err != nil {
		t.Fatalf("enroll A: %v", err)
	}
	_, err := svc.Enroll(b.ID, course.ID)
	if code := utils.ErrorCode(err); code != 400 {
		t.Fatalf("expected 400 for full course, got %d (%v)", code, err)
	}

	// a seat frees up once A drops
	if _, err := svc.Drop(a.ID, course.ID); err != nil {
		t.Fatalf("drop A: %v", err)
	}
	if _, err := svc.Enroll(b.ID, course.ID); err != nil {
		t.Fatalf("enroll B after drop: %v", err)
	}
	// and reactivating A now hits the limit
	_, err = svc.Enroll(a.ID, course.ID)
	if code := utils.ErrorCode(err); code != 400 {
		t.Fatalf("expected 400 reactivating into a full course, got %d", code)
	}
}

func TestEnrollZeroCapacityCourseIsFull(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	course := testutil.CreateCourse(t, db, teacher.ID, 1)
	// rows written before capacity was required can still hold 0
	if err := db.Model(course).Update("max_students", 0).Error; err != nil {
		t.Fatalf("reset capacity: %v", err)
	}

	svc := NewEnrollmentService(db, nil)
	for i := 0; i < 3; i++ {
		student := testutil.CreateUser(t, db, models.RoleStudent)
		_, err := svc.Enroll(student.ID, course.ID)
		if code := utils.ErrorCode(err); code != 400 {
			t.Fatalf("enroll %d into zero-capacity course: expected 400, got %d (%v)", i, code, err)
		}
	}
	var active int64
	db.Model(&models.Enrollment{}).Where("course_id = ? AND status = ?", course.ID, models.EnrollmentActive).Count(&active)
	if active != 0 {
		t.Fatalf("expected no active enrollments, got %d", active)
	}
}

func TestEnrollMissingOrInactiveCourse(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	db.Model(course).Update("active", false)

	svc := NewEnrollmentService(db, nil)
	tests := []struct {
		name     string
		courseID uint
	}{
		{"inactive", course.ID},
		{"missing", course.ID + 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enroll(student.ID, tc.courseID)
			if code := utils.ErrorCode(err); code != 404 {
				t.Fatalf("expected 404, got %d (%v)", code, err)
			}
		})
	}
}

func TestCompleteEnrollment(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	e := testutil.CreateEnrollment(t, db, student.ID, course.ID, models.EnrollmentActive)

	svc := NewEnrollmentService(db, nil)
	bad := 120.0
	if _, err := svc.Complete(e.ID, &bad); utils.ErrorCode(err) != 400 {
		t.Fatalf("expected 400 for out of range final grade, got %v", err)
	}
	grade := 88.5
	done, err := svc.Complete(e.ID, &grade)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.EnrollmentCompleted || done.FinalGrade == nil || *done.FinalGrade != grade || done.CompletedAt == nil {
		t.Fatalf("unexpected completed enrollment %+v", done)
	}
	if _, err := svc.UpdateProgress(e.ID, 50); utils.ErrorCode(err) != 400 {
		t.Fatalf("expected 400 updating progress of a completed enrollment, got %v", err)
	}
}

func TestUpdateProgressBounds(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	e := testutil.CreateEnrollment(t, db, student.ID, course.ID, models.EnrollmentActive)

	svc := NewEnrollmentService(db, nil)
	for _, p := range []float64{-1, 100.5} {
		if _, err := svc.UpdateProgress(e.ID, p); utils.ErrorCode(err) != 400 {
			t.Fatalf("progress %v: expected 400, got %v", p, err)
		}
	}
	got, err := svc.UpdateProgress(e.ID, 100)
	if err != nil {
		t.Fatalf("progress 100: %v", err)
	}
	if got.Status != models.EnrollmentActive {
		t.Fatalf("reaching 100 must not complete the enrollment, got %s", got.Status)
	}
}
