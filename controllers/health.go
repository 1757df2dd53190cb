package controllers

import (
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

// HealthController exposes comprehensive health endpoints.
type HealthController struct {
	service *services.HealthService
}

func NewHealthController(service *services.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Liveness only says the process answers requests.
func (hc *HealthController) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "Learnhub API",
	})
}

// GetHealthStatus returns the aggregated health report; 503 when the database is down.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.GetHealthReport(c.UserContext())
	return c.Status(hc.service.HTTPStatusForOverall(report.Status)).JSON(report)
}
