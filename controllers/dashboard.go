package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"

	"github.com/gofiber/fiber/v2"
)

// DashboardController serves one summary per role. Routes guard the role.
type DashboardController struct {
	dashboards *services.DashboardService
}

func NewDashboardController(dashboards *services.DashboardService) *DashboardController {
	return &DashboardController{dashboards: dashboards}
}

func (dc *DashboardController) Admin(c *fiber.Ctx) error {
	d, err := dc.dashboards.Admin(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (dc *DashboardController) Teacher(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	d, err := dc.dashboards.Teacher(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (dc *DashboardController) Student(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	d, err := dc.dashboards.Student(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (dc *DashboardController) Parent(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	d, err := dc.dashboards.Parent(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(d)
}
