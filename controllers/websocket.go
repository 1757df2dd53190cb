package controllers

import (
	"learnhub_go/middleware"
	"learnhub_go/services/websocket"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const wsUserKey = "ws_user_id"

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// Upgrade authenticates ws://<host>/ws?token=<jwt> before the protocol
// switch, so bad tokens get a plain 401.
func (wsc *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		return utils.Unauthorized("Missing token")
	}
	user, _, err := middleware.AuthenticateToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(wsUserKey, user.ID)
	return c.Next()
}

// Handler attaches the upgraded connection to the hub.
func (wsc *WebSocketController) Handler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		userID, ok := c.Locals(wsUserKey).(uint)
		if !ok {
			c.Close()
			return
		}
		logrus.WithField("user_id", userID).Info("websocket connected")
		wsc.hub.ServeFiberWS(c, userID)
	})
}

// GetWebSocketStats returns WebSocket connection statistics (admin only)
func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected_clients": wsc.hub.GetClientCount(),
		"connected_users":   wsc.hub.ConnectedUsers(),
		"status":            "active",
	})
}
