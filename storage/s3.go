package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"learnhub_go/config"
	"learnhub_go/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

// extensions accepted per content type, further narrowed by ALLOWED_EXTENSIONS
var contentExtensions = map[string][]string{
	"pdf":   {"pdf"},
	"video": {"mp4", "webm", "mov"},
}

type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	region   string
	maxSize  int64
	allowed  []string
}

// NewStorageService creates a new storage service
func NewStorageService(cfg *config.Config) (*StorageService, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewStorageServiceWithClient(s3.New(sess), cfg), nil
}

// NewStorageServiceWithClient uses the given S3 client, e.g. a stub in tests.
func NewStorageServiceWithClient(client s3iface.S3API, cfg *config.Config) *StorageService {
	return &StorageService{
		s3Client: client,
		bucket:   cfg.S3BucketName,
		region:   cfg.AWSRegion,
		maxSize:  cfg.MaxFileSize,
		allowed:  cfg.AllowedExtensionList(),
	}
}

// CheckContentFile validates the size and extension of an uploaded file for
// a content type.
func (s *StorageService) CheckContentFile(file *multipart.FileHeader, contentType string) error {
	exts, ok := contentExtensions[contentType]
	if !ok {
		return utils.BadRequest("Content type %s does not accept file uploads", contentType)
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return utils.BadRequest("File exceeds the maximum size of %d bytes", s.maxSize)
	}
	if !utils.IsValidFileExtension(file.Filename, exts) || !utils.IsValidFileExtension(file.Filename, s.allowed) {
		return utils.BadRequest("File type %s is not allowed for %s content", getFileExtension(file.Filename), contentType)
	}
	return nil
}

// UploadContentFile stores a course file under
// contents/<courseID>/<yyyy>/<mm>/<uuid>.<ext> and returns its public URL.
func (s *StorageService) UploadContentFile(ctx context.Context, file *multipart.FileHeader, courseID uint) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	ext := getFileExtension(file.Filename)
	now := time.Now().UTC()
	key := fmt.Sprintf("contents/%d/%d/%02d/%s.%s", courseID, now.Year(), now.Month(), uuid.NewString(), ext)

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String(getContentType(ext)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.publicURL(key), nil
}

// DeleteFile removes an object previously returned by UploadContentFile.
// URLs outside the bucket are ignored.
func (s *StorageService) DeleteFile(ctx context.Context, fileURL string) error {
	key := s.keyFromURL(fileURL)
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Ping checks that the content bucket exists and is reachable.
func (s *StorageService) Ping(ctx context.Context) error {
	_, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *StorageService) publicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *StorageService) keyFromURL(url string) string {
	prefix := s.publicURL("")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

func getFileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func getContentType(extension string) string {
	switch extension {
	case "pdf":
		return "application/pdf"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
