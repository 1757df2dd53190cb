package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

// UserController is the admin user management API.
type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// GetUsers returns users filtered by role, active flag and a name/email search
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return err
	}
	role := c.Query("role")
	if role != "" && !utils.IsValidRole(role) {
		return utils.BadRequest("Invalid role")
	}

	p := paging(c)
	users, total, err := uc.users.List(services.UserFilter{
		Role:   role,
		Active: active,
		Search: c.Query("search"),
	}, p)
	if err != nil {
		return err
	}
	return paginated(c, "users", utils.ToUserDTOs(users), total, p)
}

func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := uc.users.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": utils.ToUserDTO(*user)})
}

// CreateUser lets admins create accounts of any role
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var req services.UserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := uc.users.Create(req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    utils.ToUserDTO(*user),
	})
}

func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.UserUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := uc.users.Update(id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    utils.ToUserDTO(*user),
	})
}

func (uc *UserController) DeactivateUser(c *fiber.Ctx) error {
	return uc.setActive(c, false)
}

func (uc *UserController) ActivateUser(c *fiber.Ctx) error {
	return uc.setActive(c, true)
}

func (uc *UserController) setActive(c *fiber.Ctx, active bool) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	current, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	if !active && current.ID == id {
		return utils.BadRequest("You cannot deactivate your own account")
	}
	user, err := uc.users.SetActive(id, active)
	if err != nil {
		return err
	}
	message := "User activated successfully"
	if !active {
		message = "User deactivated successfully"
	}
	return c.JSON(fiber.Map{
		"message": message,
		"user":    utils.ToUserDTO(*user),
	})
}
