package utils

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"

	"learnhub_go/models"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateRandomString generates a random hex string of specified length
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	return contains([]string{models.RoleAdmin, models.RoleTeacher, models.RoleStudent, models.RoleParent}, role)
}

func IsValidAttendanceStatus(status string) bool {
	return contains([]string{models.AttendancePresent, models.AttendanceAbsent, models.AttendanceLate, models.AttendanceExcused}, status)
}

func IsValidContentType(typ string) bool {
	return contains([]string{models.ContentText, models.ContentVideo, models.ContentPDF, models.ContentLink}, typ)
}

func IsValidAssignmentType(typ string) bool {
	return contains([]string{"homework", "quiz", "project", "exam"}, typ)
}

// IsValidFileExtension checks if file extension is allowed
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowedExt := range allowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowedExt)) {
			return true
		}
	}
	return false
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}
