package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const requestIDKey = "requestid"

// RequestID tags every request with a uuid, reusing X-Request-ID when the
// client already sent one.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	})
}

func RequestIDFromCtx(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
