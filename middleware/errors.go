package middleware

import (
	"errors"

	"learnhub_go/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// statusFromError returns the HTTP status an error maps to, or 0 for unknown errors.
func statusFromError(err error) int {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fiber.StatusBadRequest
	}
	return 0
}

// ErrorHandler is the fiber.Config ErrorHandler. Known errors keep their
// message; anything else is logged and answered with a bare 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFromError(err)
	body := fiber.Map{
		"path":   c.Path(),
		"method": c.Method(),
	}

	switch {
	case code == 0:
		code = fiber.StatusInternalServerError
		body["error"] = "Internal Server Error"
		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": RequestIDFromCtx(c),
		}).WithError(err).Error("unhandled error")
	case utils.ValidationErrors(err) != nil:
		body["error"] = "Validation failed"
		body["fields"] = utils.ValidationErrors(err)
	default:
		body["error"] = err.Error()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			body["error"] = fiberErr.Message
		}
	}

	body["code"] = code
	return c.Status(code).JSON(body)
}
