package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// AWS S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	// Server
	Port   string
	AppEnv string

	// File Upload
	MaxFileSize       int64
	AllowedExtensions string

	// Logging
	LogLevel       string
	LogFile        string
	LogArchiveDays int

	// Rate limiting
	RateLimitMax      int
	RateLimitWindow   time.Duration
	LoginRateLimitMax int

	// LINE Messaging API
	LineChannelSecret      string
	LineChannelAccessToken string

	// Feature Toggles
	UseRedisNotifications bool
	SkipMigrate           bool
	SeedDB                bool
}

// GetDSN builds the connection string for the configured driver.
func (c *Config) GetDSN() string {
	if c.DBDriver == "postgres" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=UTC"
}

// AllowedExtensionList splits ALLOWED_EXTENSIONS into its parts.
func (c *Config) AllowedExtensionList() []string {
	var out []string
	for _, ext := range strings.Split(c.AllowedExtensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.AppEnv) == "production"
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := strings.TrimRight(getEnv("SSM_BASE_PATH", "/learnhub"), "/")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if v, ok := paramMap[strings.ToUpper(key)]; ok && v != "" {
			return v
		}
		return getEnv(strings.ToUpper(key), def)
	}

	jwtExpires, err := ParseDuration(getVal("JWT_EXPIRES_IN", "24h"))
	if err != nil {
		log.Fatal("Invalid JWT_EXPIRES_IN format:", err)
	}

	rateWindow, err := ParseDuration(getVal("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		log.Fatal("Invalid RATE_LIMIT_WINDOW format:", err)
	}

	maxFileSize, err := strconv.ParseInt(getVal("MAX_FILE_SIZE", "52428800"), 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_FILE_SIZE format:", err)
	}

	driver := strings.ToLower(getVal("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	AppConfig = &Config{
		DBDriver:   driver,
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", defaultPort),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "learnhub"),
		DBSSLMode:  getVal("DB_SSLMODE", "disable"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "your_super_secret_jwt_key"),
		JWTExpiresIn: jwtExpires,

		AWSRegion:          getVal("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     getVal("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getVal("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getVal("S3_BUCKET_NAME", "learnhub-storage"),

		Port:   getVal("PORT", "3000"),
		AppEnv: getVal("APP_ENV", "development"),

		MaxFileSize:       maxFileSize,
		AllowedExtensions: getVal("ALLOWED_EXTENSIONS", "pdf,mp4,webm,mov,jpg,jpeg,png"),

		LogLevel:       getVal("LOG_LEVEL", "info"),
		LogFile:        getVal("LOG_FILE", "logs/app.log"),
		LogArchiveDays: getInt(getVal("LOG_ARCHIVE_DAYS", "30"), 30),

		RateLimitMax:      getInt(getVal("RATE_LIMIT_MAX", "100"), 100),
		RateLimitWindow:   rateWindow,
		LoginRateLimitMax: getInt(getVal("LOGIN_RATE_LIMIT_MAX", "5"), 5),

		LineChannelSecret:      getVal("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getVal("LINE_CHANNEL_ACCESS_TOKEN", ""),

		UseRedisNotifications: strings.ToLower(getVal("USE_REDIS_NOTIFICATIONS", "false")) == "true",
		SkipMigrate:           strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",
		SeedDB:                strings.ToLower(getVal("SEED_DB", "false")) == "true",
	}

	if err := validateConfig(AppConfig); err != nil {
		log.Fatalf("%v (SSM=%v)", err, useSSM)
	}
}

// ParseDuration accepts Go durations plus the d (day) and w (week) shorthands.
func ParseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) > 1 {
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil && n >= 0 {
			switch s[len(s)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	var next *string
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
			NextToken:      next,
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key := *p.Name
			if idx := strings.LastIndex(key, "/"); idx >= 0 {
				key = key[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config) error {
	if c.DBDriver != "mysql" && c.DBDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q (mysql or postgres)", c.DBDriver)
	}
	// Only enforce stricter rules in production
	if !c.IsProduction() {
		return nil
	}
	required := map[string]string{
		"DB_PASSWORD": c.DBPassword,
		"JWT_SECRET":  c.JWTSecret,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("missing required secret %s in production", k)
		}
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET too short (min 16 chars)")
	}
	return nil
}
