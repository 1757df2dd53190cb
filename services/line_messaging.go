package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learnhub_go/models"
	"learnhub_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LineMessagingService talks to the LINE Messaging API.
type LineMessagingService struct {
	bot *linebot.Client
}

// NewLineMessagingService returns a disabled service when credentials are missing.
func NewLineMessagingService(channelSecret, channelToken string) (*LineMessagingService, error) {
	if channelSecret == "" || channelToken == "" {
		logrus.Warn("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{}, nil
	}
	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("cannot create LINE bot client: %w", err)
	}
	return &LineMessagingService{bot: bot}, nil
}

func (s *LineMessagingService) Enabled() bool {
	return s != nil && s.bot != nil
}

// PushText sends a text message to a LINE user id.
func (s *LineMessagingService) PushText(to, text string) error {
	if !s.Enabled() {
		return fmt.Errorf("LINE bot client is not initialized")
	}
	if _, err := s.bot.PushMessage(to, linebot.NewTextMessage(text)).Do(); err != nil {
		return fmt.Errorf("LINE push failed: %w", err)
	}
	return nil
}

func (s *LineMessagingService) ReplyText(replyToken, text string) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).Do(); err != nil {
		return fmt.Errorf("LINE reply failed: %w", err)
	}
	return nil
}

const (
	lineLinkPrefix = "line:link:"
	LineLinkTTL    = 15 * time.Minute
	lineCodeLength = 8
)

// LineLinkService binds LINE user ids to accounts with one-time codes: the
// user requests a code in the app and sends it to the bot.
type LineLinkService struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewLineLinkService(db *gorm.DB, rdb *redis.Client) *LineLinkService {
	return &LineLinkService{db: db, redis: rdb}
}

// IssueCode stores a fresh code for userID and returns it with its expiry.
func (s *LineLinkService) IssueCode(ctx context.Context, userID uint) (string, time.Time, error) {
	if s.redis == nil {
		return "", time.Time{}, utils.Unavailable("LINE linking is unavailable")
	}
	code, err := utils.GenerateRandomString(lineCodeLength)
	if err != nil {
		return "", time.Time{}, err
	}
	code = strings.ToUpper(code)
	if err := s.redis.Set(ctx, lineLinkPrefix+code, userID, LineLinkTTL).Err(); err != nil {
		return "", time.Time{}, err
	}
	return code, time.Now().UTC().Add(LineLinkTTL), nil
}

// IsLineLinkCode reports whether text looks like a link code.
func IsLineLinkCode(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) != lineCodeLength {
		return false
	}
	for _, r := range text {
		if !strings.ContainsRune("0123456789ABCDEFabcdef", r) {
			return false
		}
	}
	return true
}

// Redeem consumes code and stores lineUserID on the owning account.
func (s *LineLinkService) Redeem(ctx context.Context, code, lineUserID string) (*models.User, error) {
	if s.redis == nil {
		return nil, utils.Unavailable("LINE linking is unavailable")
	}
	key := lineLinkPrefix + strings.ToUpper(strings.TrimSpace(code))
	userID, err := s.redis.GetDel(ctx, key).Uint64()
	if err != nil {
		if err == redis.Nil {
			return nil, utils.NotFound("Link code is invalid or expired")
		}
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, uint(userID)).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("User not found")
		}
		return nil, err
	}
	// a LINE account belongs to one user at a time
	if err := s.db.Model(&models.User{}).
		Where("line_id = ? AND id <> ?", lineUserID, user.ID).
		Update("line_id", "").Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&user).Update("line_id", lineUserID).Error; err != nil {
		return nil, err
	}
	user.LineID = lineUserID
	return &user, nil
}

// Unlink clears the LINE id wherever it is stored, e.g. after the user blocks the bot.
func (s *LineLinkService) Unlink(lineUserID string) (int64, error) {
	res := s.db.Model(&models.User{}).Where("line_id = ?", lineUserID).Update("line_id", "")
	return res.RowsAffected, res.Error
}
