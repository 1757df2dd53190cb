package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

type ParentController struct {
	parents *services.ParentService
}

func NewParentController(parents *services.ParentService) *ParentController {
	return &ParentController{parents: parents}
}

// LinkParent links a parent account to a student account (admin only)
func (pc *ParentController) LinkParent(c *fiber.Ctx) error {
	var req services.LinkInput
	if err := bind(c, &req); err != nil {
		return err
	}
	link, err := pc.parents.Link(req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Parent linked successfully",
		"link":    link,
	})
}

func (pc *ParentController) UnlinkParent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := pc.parents.Unlink(id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Parent unlinked successfully"})
}

func (pc *ParentController) GetChildren(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	children, err := pc.parents.Children(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"children": utils.ToUserDTOs(children), "total": len(children)})
}

// GetChildOverview returns enrollments, grade average and attendance of a linked child.
func (pc *ParentController) GetChildOverview(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	studentID, err := paramID(c, "studentId")
	if err != nil {
		return err
	}
	overview, err := pc.parents.ChildOverview(user.ID, studentID)
	if err != nil {
		return err
	}
	return c.JSON(overview)
}
