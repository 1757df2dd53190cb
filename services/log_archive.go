package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"learnhub_go/models"
	"learnhub_go/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// LogQueueKey is the sorted set of cached activity log keys scored by unix time.
	LogQueueKey = "logs:queue"
	// MinArchiveDays keeps recent logs out of the archive.
	MinArchiveDays = 7
)

// ArchiveStore keeps archive files outside the database.
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3ArchiveStore stores archives in an S3 bucket.
type S3ArchiveStore struct {
	client *s3.Client
	bucket string
}

// NewS3ArchiveStore loads the default AWS credential chain for region.
func NewS3ArchiveStore(ctx context.Context, region, bucket string) (*S3ArchiveStore, error) {
	if region == "" || bucket == "" {
		return nil, fmt.Errorf("AWS region and bucket are required")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &S3ArchiveStore{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (st *S3ArchiveStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (st *S3ArchiveStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := st.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// LogArchiveService flushes cached activity logs and archives old ones.
type LogArchiveService struct {
	db    *gorm.DB
	redis *redis.Client
	store ArchiveStore
	now   func() time.Time
}

func NewLogArchiveService(db *gorm.DB, rdb *redis.Client, store ArchiveStore) *LogArchiveService {
	return &LogArchiveService{db: db, redis: rdb, store: store, now: utcNow}
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	UserID     uint           `json:"user_id"`
	UserName   string         `json:"user_name,omitempty"`
	UserRole   string         `json:"user_role,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uint           `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CacheEnabled reports whether logs are buffered in Redis.
func (las *LogArchiveService) CacheEnabled() bool {
	return las.redis != nil
}

// ArchivingEnabled reports whether an archive store is configured.
func (las *LogArchiveService) ArchivingEnabled() bool {
	return las.store != nil
}

type LogFilter struct {
	UserID   uint
	Action   string
	Resource string
}

// List returns stored activity logs, newest first.
func (las *LogArchiveService) List(f LogFilter, p utils.Paging) ([]models.ActivityLog, int64, error) {
	query := las.db.Model(&models.ActivityLog{})
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		query = query.Where("resource = ?", f.Resource)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.ActivityLog
	err := query.Order("created_at DESC, id DESC").Offset(p.Offset).Limit(p.PerPage).Find(&logs).Error
	return logs, total, err
}

// LogStats breaks stored activity down by action and resource.
type LogStats struct {
	Since      time.Time        `json:"since"`
	Total      int64            `json:"total"`
	ByAction   map[string]int64 `json:"by_action"`
	ByResource map[string]int64 `json:"by_resource"`
	TopUsers   []UserActivity   `json:"top_users"`
}

type UserActivity struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Count  int64  `json:"count" gorm:"column:total"`
}

type groupCount struct {
	Label string
	Total int64
}

// Stats summarizes logs stored since the given time.
func (las *LogArchiveService) Stats(since time.Time) (*LogStats, error) {
	out := &LogStats{Since: since, ByAction: map[string]int64{}, ByResource: map[string]int64{}}
	base := func() *gorm.DB {
		return las.db.Model(&models.ActivityLog{}).Where("activity_logs.created_at >= ?", since)
	}

	for column, dest := range map[string]map[string]int64{"action": out.ByAction, "resource": out.ByResource} {
		var rows []groupCount
		if err := base().Select(column + " AS label, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			dest[r.Label] = r.Total
			if column == "action" {
				out.Total += r.Total
			}
		}
	}

	if err := base().
		Select("activity_logs.user_id AS user_id, users.name AS name, users.role AS role, COUNT(*) AS total").
		Joins("JOIN users ON users.id = activity_logs.user_id").
		Group("activity_logs.user_id, users.name, users.role").
		Order("total DESC").
		Limit(5).
		Scan(&out.TopUsers).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FlushCachedLogsToDatabase moves cached logs queued before cutoff into the database.
func (las *LogArchiveService) FlushCachedLogsToDatabase(ctx context.Context, cutoff time.Time) (int, error) {
	if las.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}

	keys, err := las.redis.ZRangeByScore(ctx, LogQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get cached logs: %w", err)
	}

	processed, failed := 0, 0
	for _, key := range keys {
		raw, err := las.redis.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				// expired payload, drop the dangling queue entry
				las.redis.ZRem(ctx, LogQueueKey, key)
			} else {
				logrus.WithError(err).WithField("key", key).Error("failed to read cached log")
				failed++
			}
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Error("failed to decode cached log")
			failed++
			continue
		}
		entry.ID = 0
		if err := las.db.Create(&entry).Error; err != nil {
			logrus.WithError(err).WithField("key", key).Error("failed to store cached log")
			failed++
			continue
		}

		pipe := las.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("failed to remove flushed log from cache")
		}
		processed++
	}

	logrus.WithFields(logrus.Fields{"flushed": processed, "errors": failed}).Info("flushed cached activity logs")
	return processed, nil
}

func (las *LogArchiveService) collect(cutoff time.Time) ([]ArchivedLog, error) {
	const batchSize = 1000

	var out []ArchivedLog
	var lastID uint
	for {
		var rows []struct {
			models.ActivityLog
			UserName string
			UserRole string
		}
		err := las.db.Model(&models.ActivityLog{}).
			Select("activity_logs.*, users.name AS user_name, users.role AS user_role").
			Joins("LEFT JOIN users ON users.id = activity_logs.user_id").
			Where("activity_logs.created_at < ? AND activity_logs.id > ?", cutoff, lastID).
			Order("activity_logs.id ASC").
			Limit(batchSize).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs for archiving: %w", err)
		}
		if len(rows) == 0 {
			return out, nil
		}
		for _, r := range rows {
			item := ArchivedLog{
				ID:         r.ID,
				UserID:     r.UserID,
				UserName:   r.UserName,
				UserRole:   r.UserRole,
				Action:     r.Action,
				Resource:   r.Resource,
				ResourceID: r.ResourceID,
				IPAddress:  r.IPAddress,
				UserAgent:  r.UserAgent,
				CreatedAt:  r.CreatedAt,
			}
			if !r.Details.IsNull() {
				var details map[string]any
				if err := json.Unmarshal(r.Details, &details); err == nil {
					item.Details = details
				}
			}
			out = append(out, item)
			lastID = r.ID
		}
	}
}

// ArchiveOldLogs zips logs older than daysOld days, stores the archive and
// removes the archived rows from the database.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < MinArchiveDays {
		return nil, fmt.Errorf("minimum archive age is %d days", MinArchiveDays)
	}
	if las.store == nil {
		return nil, fmt.Errorf("archive storage not configured")
	}

	cutoff := las.now().AddDate(0, 0, -daysOld)
	logs, err := las.collect(cutoff)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		logrus.Info("no activity logs to archive")
		return nil, nil
	}

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02"))
	buf, err := createZipArchive(logs, fileName, las.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), fileName)
	archive := models.LogArchive{
		FileName:    fileName,
		S3Key:       key,
		StartDate:   logs[0].CreatedAt,
		EndDate:     cutoff,
		RecordCount: len(logs),
		FileSize:    int64(buf.Len()),
		Status:      "pending",
	}

	if err := las.store.Put(ctx, key, buf.Bytes(), "application/zip"); err != nil {
		archive.Status = "failed"
		archive.Error = err.Error()
		if dbErr := las.db.Create(&archive).Error; dbErr != nil {
			logrus.WithError(dbErr).Error("failed to save archive metadata")
		}
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	lastID := logs[len(logs)-1].ID
	err = las.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ? AND id <= ?", cutoff, lastID).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		archive.Status = "completed"
		return tx.Create(&archive).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	logrus.WithFields(logrus.Fields{"key": key, "records": len(logs)}).Info("archived activity logs")
	return &archive, nil
}

// createZipArchive packs logs as JSON and CSV plus a small metadata file.
func createZipArchive(logs []ArchivedLog, fileName string, now time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jsonFile, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":    now,
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	metaFile, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(metaFile).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   now,
		"record_count": len(logs),
		"date_range": map[string]any{
			"start": logs[0].CreatedAt,
			"end":   logs[len(logs)-1].CreatedAt,
		},
		"schema_version": "1.0",
		"description":    "Learnhub activity logs archive",
	}); err != nil {
		return nil, err
	}

	csvFile, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "User ID", "User", "Role", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.UserName,
			l.UserRole,
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Archives lists stored archive records, newest first.
func (las *LogArchiveService) Archives() ([]models.LogArchive, error) {
	var archives []models.LogArchive
	err := las.db.Order("created_at DESC").Find(&archives).Error
	return archives, err
}

// Download opens a stored archive for streaming.
func (las *LogArchiveService) Download(ctx context.Context, archiveID uint) (io.ReadCloser, string, error) {
	var archive models.LogArchive
	if err := las.db.First(&archive, archiveID).Error; err != nil {
		if isNotFound(err) {
			return nil, "", utils.NotFound("Archive not found")
		}
		return nil, "", err
	}
	if las.store == nil {
		return nil, "", fmt.Errorf("archive storage not configured")
	}
	body, err := las.store.Get(ctx, archive.S3Key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download archive: %w", err)
	}
	return body, archive.FileName, nil
}
