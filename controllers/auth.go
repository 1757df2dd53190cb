package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	users *services.UserService
	links *services.LineLinkService
}

func NewAuthController(users *services.UserService, links *services.LineLinkService) *AuthController {
	return &AuthController{users: users, links: links}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type ProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=20"`
}

// Register creates a student or parent account and signs it in.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req services.UserInput
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := ac.users.Register(req)
	if err != nil {
		return err
	}
	token, err := middleware.GenerateToken(user)
	if err != nil {
		return err
	}

	middleware.LogActivity(c, "REGISTER", "auth", user.ID, fiber.Map{"role": user.Role})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"user":    utils.ToUserDTO(*user),
	})
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := ac.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if utils.ErrorCode(err) == fiber.StatusUnauthorized {
			middleware.LogActivity(c, "LOGIN_FAILED", "auth", 0, fiber.Map{"email": req.Email})
		}
		return err
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		return err
	}

	middleware.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{"role": user.Role})

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    utils.ToUserDTO(*user),
	})
}

// GetProfile returns the current user profile
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": utils.ToUserDTO(*user)})
}

// UpdateProfile lets users edit their own name and phone.
func (ac *AuthController) UpdateProfile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req ProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	updated, err := ac.users.Update(user.ID, services.UserUpdate{Name: req.Name, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    utils.ToUserDTO(*updated),
	})
}

// ChangePassword changes the current user's password
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := ac.users.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// Logout revokes the bearer token until it expires.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return err
	}
	if err := middleware.BlacklistToken(c.UserContext(), middleware.GetCurrentToken(c), claims); err != nil {
		logrus.WithError(err).Warn("failed to revoke token on logout")
	}

	middleware.LogActivity(c, "LOGOUT", "auth", claims.UserID, nil)

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// IssueLineLinkCode returns a one-time code the user sends to the LINE bot.
func (ac *AuthController) IssueLineLinkCode(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	code, expiresAt, err := ac.links.IssueCode(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"code":       code,
		"expires_at": expiresAt,
	})
}
