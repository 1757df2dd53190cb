package services

import (
	"testing"

	"learnhub_go/models"
	"learnhub_go/testutil"
	"learnhub_go/utils"
)

func TestContentAppendsAndReorders(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)

	svc := NewContentService(db)
	var ids []uint
	for i, in := range []ContentInput{
		{Title: "Intro", Type: models.ContentText, Body: "Welcome"},
		{Title: "Lecture", Type: models.ContentVideo, URL: "https://videos.example.com/1"},
		{Title: "Slides", Type: models.ContentPDF, URL: "https://files.example.com/slides.pdf"},
	} {
		c, err := svc.Create(teacher, course.ID, in)
		if err != nil {
			t.Fatalf("create %s: %v", in.Title, err)
		}
		if c.OrderIndex != i {
			t.Fatalf("%s: expected order index %d, got %d", in.Title, i, c.OrderIndex)
		}
		ids = append(ids, c.ID)
	}

	reordered, err := svc.Reorder(teacher, course.ID, []uint{ids[2], ids[0], ids[1]})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want := []uint{ids[2], ids[0], ids[1]}
	for i, c := range reordered {
		if c.ID != want[i] || c.OrderIndex != i {
			t.Fatalf("position %d: got content %d at %d", i, c.ID, c.OrderIndex)
		}
	}

	tests := []struct {
		name string
		ids  []uint
	}{
		{"missing item", []uint{ids[0], ids[1]}},
		{"duplicate item", []uint{ids[0], ids[0], ids[1]}},
		{"foreign item", []uint{ids[0], ids[1], ids[2] + 100}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Reorder(teacher, course.ID, tc.ids); utils.ErrorCode(err) != 400 {
				t.Fatalf("expected 400, got %v", err)
			}
		})
	}
}

func TestContentValidation(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)

	svc := NewContentService(db)
	tests := []struct {
		name  string
		actor *models.User
		in    ContentInput
		code  int
	}{
		{"text without body", teacher, ContentInput{Title: "T", Type: models.ContentText}, 400},
		{"link without url", teacher, ContentInput{Title: "L", Type: models.ContentLink}, 400},
		{"unknown type", teacher, ContentInput{Title: "X", Type: "audio", URL: "https://a.example.com"}, 400},
		{"student cannot create", student, ContentInput{Title: "T", Type: models.ContentText, Body: "b"}, 403},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(tc.actor, course.ID, tc.in)
			if code := utils.ErrorCode(err); code != tc.code {
				t.Fatalf("expected %d, got %d (%v)", tc.code, code, err)
			}
		})
	}
}

func TestContentListHidesDrafts(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	student := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	testutil.CreateEnrollment(t, db, student.ID, course.ID, models.EnrollmentActive)

	svc := NewContentService(db)
	draft := false
	if _, err := svc.Create(teacher, course.ID, ContentInput{Title: "Public", Type: models.ContentText, Body: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(teacher, course.ID, ContentInput{Title: "Draft", Type: models.ContentText, Body: "b", Published: &draft}); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	forStudent, err := svc.List(student, course.ID)
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(forStudent) != 1 || forStudent[0].Title != "Public" {
		t.Fatalf("student should only see published content, got %d items", len(forStudent))
	}
	forTeacher, err := svc.List(teacher, course.ID)
	if err != nil {
		t.Fatalf("teacher list: %v", err)
	}
	if len(forTeacher) != 2 {
		t.Fatalf("teacher should see drafts too, got %d items", len(forTeacher))
	}
}
