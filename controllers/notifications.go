package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/models"
	"learnhub_go/services/notifications"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

type NotificationController struct {
	notifications *notifications.Service
}

func NewNotificationController(svc *notifications.Service) *NotificationController {
	return &NotificationController{notifications: svc}
}

// CreateNotificationRequest targets users by id, by role, by course or any mix.
type CreateNotificationRequest struct {
	UserIDs  []uint      `json:"user_ids"`
	Role     string      `json:"role" validate:"omitempty,oneof=admin teacher student parent"`
	CourseID uint        `json:"course_id"`
	Title    string      `json:"title" validate:"required,max=255"`
	Message  string      `json:"message" validate:"required"`
	Type     string      `json:"type" validate:"omitempty,oneof=info warning success error assignment grade enrollment session"`
	Channels []string    `json:"channels"`
	Data     interface{} `json:"data"`
}

// GetNotifications returns the current user's notifications
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	read, err := queryBool(c, "read")
	if err != nil {
		return err
	}
	p := paging(c)
	list, total, err := nc.notifications.List(user.ID, read, c.Query("type"), p)
	if err != nil {
		return err
	}
	return paginated(c, "notifications", utils.ToNotificationDTOs(list), total, p)
}

func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	count, err := nc.notifications.UnreadCount(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// CreateNotification sends an admin broadcast
func (nc *NotificationController) CreateNotification(c *fiber.Ctx) error {
	var req CreateNotificationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if len(req.UserIDs) == 0 && req.Role == "" && req.CourseID == 0 {
		return utils.BadRequest("Specify user_ids, role or course_id")
	}
	if req.Type == "" {
		req.Type = models.NotificationInfo
	}

	recipients, err := nc.notifications.Recipients(notifications.Audience{
		UserIDs:  req.UserIDs,
		Role:     req.Role,
		CourseID: req.CourseID,
	})
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return utils.BadRequest("No active recipients matched")
	}

	payload := notifications.NewWithData(req.Title, req.Message, req.Type, req.Data, req.Channels...)
	if err := nc.notifications.EnqueueOrCreate(recipients, payload); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Notification sent",
		"recipients": len(recipients),
	})
}

func (nc *NotificationController) MarkAsRead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	n, err := nc.notifications.MarkRead(user.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notification": utils.ToNotificationDTO(*n)})
}

func (nc *NotificationController) MarkAllAsRead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	updated, err := nc.notifications.MarkAllRead(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := nc.notifications.Delete(user.ID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Notification deleted successfully"})
}
