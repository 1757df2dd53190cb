package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnhub_go/config"
	"learnhub_go/database"
	"learnhub_go/models"
	"learnhub_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Payload is the queued form of a notification. One payload fans out to many users.
type Payload struct {
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Channels  []string  `json:"channels,omitempty"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// WSHub interface for WebSocket broadcasting
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// LinePusher delivers a text message to a LINE user id.
type LinePusher interface {
	PushText(to, text string) error
}

var (
	defaultHub  WSHub
	defaultLine LinePusher
)

// SetDefaultWSHub sets the hub used by every Service created afterwards.
func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

// SetDefaultLinePusher sets the LINE client used for the "line" channel.
func SetDefaultLinePusher(p LinePusher) {
	defaultLine = p
}

// Service creates notifications, through the Redis queue when enabled or
// directly in the database otherwise.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
	line     LinePusher
}

func NewService() *Service {
	useRedis := config.AppConfig != nil && config.AppConfig.UseRedisNotifications
	return NewServiceWithDB(database.GetDB(), database.GetRedisClient(), useRedis)
}

func NewServiceWithDB(db *gorm.DB, rdb *redis.Client, useRedis bool) *Service {
	return &Service{
		db:       db,
		redis:    rdb,
		useRedis: useRedis && rdb != nil,
		wsHub:    defaultHub,
		line:     defaultLine,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

func (s *Service) SetLinePusher(p LinePusher) {
	s.line = p
}

// normalizeChannels keeps only allowed values and ensures default channel
func normalizeChannels(in []string) []string {
	allowed := map[string]struct{}{"normal": {}, "popup": {}, "line": {}}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, ch := range in {
		if _, ok := allowed[ch]; !ok {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		out = append(out, ch)
		seen[ch] = struct{}{}
	}
	if len(out) == 0 {
		out = []string{"normal"}
	}
	return out
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func New(title, message, typ string, channels ...string) Payload {
	return Payload{Title: title, Message: message, Type: typ, Channels: normalizeChannels(channels)}
}

// NewWithData attaches a structured payload (deep-links/actions)
func NewWithData(title, message, typ string, data any, channels ...string) Payload {
	p := New(title, message, typ, channels...)
	p.Data = data
	return p
}

// EnqueueOrCreate stores notifications using Redis queue if enabled, else direct insert.
func (s *Service) EnqueueOrCreate(userIDs []uint, n Payload) error {
	userIDs = uniqueIDs(userIDs)
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil
		}
		logrus.WithError(err).Warn("[notif] Redis queue failed, falling back to direct insert")
	}

	return s.createDirect(userIDs, n)
}

// createDirect writes directly to DB (used by worker or fallback) and pushes to live channels.
func (s *Service) createDirect(userIDs []uint, n Payload) error {
	if len(userIDs) == 0 {
		return nil
	}
	channels := normalizeChannels(n.Channels)
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		channelsJSON = []byte(`["normal"]`)
	}
	var dataJSON []byte
	if n.Data != nil {
		if b, err := json.Marshal(n.Data); err == nil {
			dataJSON = b
		}
	}
	typ := n.Type
	if typ == "" {
		typ = models.NotificationInfo
	}

	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:   uid,
			Title:    n.Title,
			Message:  n.Message,
			Type:     typ,
			Channels: channelsJSON,
			Data:     dataJSON,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	if s.wsHub != nil {
		for _, notif := range notifs {
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": utils.ToNotificationDTO(notif),
			})
		}
	}

	for _, ch := range channels {
		if ch == "line" {
			s.pushLine(userIDs, n)
		}
	}

	return nil
}

func (s *Service) pushLine(userIDs []uint, n Payload) {
	if s.line == nil {
		return
	}
	var users []models.User
	if err := s.db.Select("id", "line_id").Where("id IN ? AND line_id <> ''", userIDs).Find(&users).Error; err != nil {
		logrus.WithError(err).Warn("[notif] failed to load LINE recipients")
		return
	}
	text := n.Title
	if n.Message != "" {
		text = fmt.Sprintf("%s\n%s", n.Title, n.Message)
	}
	for _, u := range users {
		if err := s.line.PushText(u.LineID, text); err != nil {
			logrus.WithError(err).WithField("user_id", u.ID).Warn("[notif] LINE push failed")
		}
	}
}

// StartWorker starts a background worker polling Redis queue and flushing to DB
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("[notif] Redis notifications disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("[notif] Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				logrus.Info("[notif] Worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, 200)
			}
		}
	}()
}

// flushBatch drains up to five batches from the Redis queue into the database.
func (s *Service) flushBatch(ctx context.Context, batchSize int) int {
	if s.redis == nil {
		return 0
	}
	processed := 0
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return processed
		}
		// Trim immediately to avoid duplicates (best-effort)
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("[notif] LTrim failed")
		}
		for _, raw := range vals {
			var q Payload
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q.UserIDs, q); err != nil {
				logrus.WithError(err).Error("[notif] DB insert failed")
				continue
			}
			processed++
		}
		if len(vals) < batchSize {
			return processed
		}
	}
	return processed
}

// List returns a page of the user's notifications, newest first.
func (s *Service) List(userID uint, read *bool, typ string, p utils.Paging) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if read != nil {
		query = query.Where("is_read = ?", *read)
	}
	if typ != "" {
		query = query.Where("type = ?", typ)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Notification
	err := query.Order("created_at DESC").Order("id DESC").Offset(p.Offset).Limit(p.PerPage).Find(&list).Error
	return list, total, err
}

func (s *Service) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
	return count, err
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(userID, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Notification not found")
		}
		return nil, err
	}
	if n.Read {
		return &n, nil
	}
	now := time.Now().UTC()
	if err := s.db.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, err
	}
	n.Read = true
	n.ReadAt = &now
	return &n, nil
}

func (s *Service) MarkAllRead(userID uint) (int64, error) {
	res := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (s *Service) Delete(userID, id uint) error {
	res := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Notification not found")
	}
	return nil
}

// Audience selects the recipients of an admin broadcast. The selectors are
// combined: explicit ids, every active user of a role, and the non-dropped
// students of a course.
type Audience struct {
	UserIDs  []uint
	Role     string
	CourseID uint
}

// Recipients resolves an Audience to distinct active user ids.
func (s *Service) Recipients(a Audience) ([]uint, error) {
	var ids []uint
	if len(a.UserIDs) > 0 {
		var found []uint
		if err := s.db.Model(&models.User{}).Where("id IN ? AND active = ?", a.UserIDs, true).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	if a.Role != "" {
		var found []uint
		if err := s.db.Model(&models.User{}).Where("role = ? AND active = ?", a.Role, true).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	if a.CourseID != 0 {
		var found []uint
		if err := s.db.Model(&models.Enrollment{}).
			Joins("JOIN users ON users.id = enrollments.student_id").
			Where("enrollments.course_id = ? AND enrollments.status <> ? AND users.active = ?", a.CourseID, models.EnrollmentDropped, true).
			Pluck("enrollments.student_id", &found).Error; err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return uniqueIDs(ids), nil
}
