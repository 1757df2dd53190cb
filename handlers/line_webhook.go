package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"learnhub_go/models"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

const (
	replyWelcome = "Welcome to Learnhub! Open your profile in the app, request a LINE link code and send it here to receive notifications."
	replyLinked  = "Your LINE account is now linked to %s. You will receive Learnhub notifications here."
	replyInvalid = "That code is invalid or has expired. Please request a new one in the app."
)

// Replier answers a LINE event through its reply token.
type Replier interface {
	ReplyText(replyToken, text string) error
}

// AccountLinker binds and unbinds LINE user ids.
type AccountLinker interface {
	Redeem(ctx context.Context, code, lineUserID string) (*models.User, error)
	Unlink(lineUserID string) (int64, error)
}

type LineWebhookHandler struct {
	secret string
	line   Replier
	links  AccountLinker
}

func NewLineWebhookHandler(secret string, line Replier, links AccountLinker) *LineWebhookHandler {
	return &LineWebhookHandler{secret: secret, line: line, links: links}
}

// Handle verifies the signature, answers 200 right away and processes the
// events in the background so LINE does not time out.
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	body := append([]byte(nil), c.Body()...)
	if !ValidateSignature(h.secret, body, signature) {
		logrus.WithField("ip", c.IP()).Warn("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	go h.HandleEvents(webhook.Events)
	return c.SendStatus(fiber.StatusOK)
}

// HandleEvents reacts to follow, unfollow and text message events.
func (h *LineWebhookHandler) HandleEvents(events []*linebot.Event) {
	for _, event := range events {
		if event == nil || event.Source == nil || event.Source.UserID == "" {
			continue
		}
		lineUserID := event.Source.UserID

		switch event.Type {
		case linebot.EventTypeFollow:
			h.reply(event.ReplyToken, replyWelcome)

		case linebot.EventTypeUnfollow:
			n, err := h.links.Unlink(lineUserID)
			if err != nil {
				logrus.WithError(err).Error("failed to unlink LINE user")
				continue
			}
			logrus.WithField("accounts", n).Info("LINE user unfollowed")

		case linebot.EventTypeMessage:
			msg, ok := event.Message.(*linebot.TextMessage)
			if !ok || !services.IsLineLinkCode(msg.Text) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			link, err := h.links.Redeem(ctx, msg.Text, lineUserID)
			cancel()
			if err != nil {
				if utils.ErrorCode(err) == fiber.StatusNotFound {
					h.reply(event.ReplyToken, replyInvalid)
					continue
				}
				logrus.WithError(err).Error("failed to redeem LINE link code")
				continue
			}
			h.reply(event.ReplyToken, fmt.Sprintf(replyLinked, link.Name))
		}
	}
}

func (h *LineWebhookHandler) reply(token, text string) {
	if h.line == nil || token == "" {
		return
	}
	if err := h.line.ReplyText(token, text); err != nil {
		logrus.WithError(err).Warn("LINE reply failed")
	}
}

// ValidateSignature checks the X-Line-Signature header against the raw body.
func ValidateSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
