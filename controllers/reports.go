package controllers

import (
	"fmt"

	"learnhub_go/middleware"
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportController struct {
	reports *services.ReportService
}

func NewReportController(reports *services.ReportService) *ReportController {
	return &ReportController{reports: reports}
}

// Gradebook streams the course gradebook workbook
func (rc *ReportController) Gradebook(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	course, buf, err := rc.reports.Gradebook(user, courseID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, services.GradebookFilename(course)))
	return c.Send(buf.Bytes())
}
