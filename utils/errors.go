package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// AppError is a domain error carrying the HTTP status it maps to.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(code int, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusBadRequest, format, args...)
}

func Unauthorized(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusConflict, format, args...)
}

// ErrorCode returns the HTTP status carried by err, or 0 if err is not an AppError.
func ErrorCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

func Unavailable(format string, args ...interface{}) *AppError {
	return newAppError(fiber.StatusServiceUnavailable, format, args...)
}
