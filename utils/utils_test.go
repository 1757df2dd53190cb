package utils

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "secret123" {
		t.Fatalf("hash must not equal the plain password")
	}
	if err := CheckPassword("secret123", hash); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestGenerateRandomString(t *testing.T) {
	for _, n := range []int{1, 7, 16, 33} {
		s, err := GenerateRandomString(n)
		if err != nil {
			t.Fatalf("GenerateRandomString(%d): %v", n, err)
		}
		if len(s) != n {
			t.Fatalf("GenerateRandomString(%d) returned %d chars", n, len(s))
		}
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"role parent", IsValidRole, "parent", true},
		{"role owner", IsValidRole, "owner", false},
		{"attendance late", IsValidAttendanceStatus, "late", true},
		{"attendance sick", IsValidAttendanceStatus, "sick", false},
		{"content pdf", IsValidContentType, "pdf", true},
		{"content audio", IsValidContentType, "audio", false},
		{"assignment exam", IsValidAssignmentType, "exam", true},
		{"assignment essay", IsValidAssignmentType, "essay", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"pdf", "MP4"}
	tests := []struct {
		file string
		want bool
	}{
		{"notes.pdf", true},
		{"lecture.mp4", true},
		{"LECTURE.MP4", true},
		{"archive.tar.gz", false},
		{"noext", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidFileExtension(tt.file, allowed); got != tt.want {
			t.Fatalf("IsValidFileExtension(%q) = %v, want %v", tt.file, got, tt.want)
		}
	}
}

func TestPaging(t *testing.T) {
	p := NewPaging(0, 0, 20, 100)
	if p.Page != 1 || p.PerPage != 20 || p.Offset != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	p = NewPaging(3, 500, 20, 100)
	if p.PerPage != 100 || p.Offset != 200 {
		t.Fatalf("unexpected clamp: %+v", p)
	}

	pg := BuildPagination(45, NewPaging(2, 20, 20, 100))
	if pg.TotalPages != 3 || !pg.HasNext || !pg.HasPrev {
		t.Fatalf("unexpected pagination: %+v", pg)
	}
	pg = BuildPagination(0, NewPaging(1, 20, 20, 100))
	if pg.TotalPages != 1 || pg.HasNext || pg.HasPrev {
		t.Fatalf("unexpected empty pagination: %+v", pg)
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(NotFound("course %d not found", 4)); got != fiber.StatusNotFound {
		t.Fatalf("got %d", got)
	}
	wrapped := fmt.Errorf("enroll: %w", Conflict("already enrolled"))
	if got := ErrorCode(wrapped); got != fiber.StatusConflict {
		t.Fatalf("wrapped error lost its code: %d", got)
	}
	if got := ErrorCode(fmt.Errorf("boom")); got != 0 {
		t.Fatalf("plain error should have no code, got %d", got)
	}
	if msg := NotFound("course %d not found", 4).Error(); msg != "course 4 not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestValidateStruct(t *testing.T) {
	type req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}
	err := ValidateStruct(req{Email: "nope", Password: "123"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	fields := ValidationErrors(err)
	if fields["email"] != "email" {
		t.Fatalf("expected email tag failure, got %v", fields)
	}
	if fields["password"] != "min=6" {
		t.Fatalf("expected min=6 failure, got %v", fields)
	}
	if err := ValidateStruct(req{Email: "a@b.co", Password: "123456"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
