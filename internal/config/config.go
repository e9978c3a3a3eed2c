package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/storage"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Category sources for import validation.
const (
	CategorySourceDatabase = "database"
	CategorySourceService  = "service"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port        string
	Environment string
	CORSOrigins []string

	// Events
	NATSURL string

	// Categories are read from the shared database or from categories-service
	CategorySource       string
	CategoriesServiceURL string

	// Pagination
	DefaultPageSize int
	MaxPageSize     int

	// Import limits
	MaxUploadBytes    int64
	ParseTimeout      time.Duration
	ValidationTimeout time.Duration
	CommitTimeout     time.Duration

	// Image uploads
	UploadConcurrency int
	UploadTimeout     time.Duration
	UploadRetries     int
	UploadBackoff     time.Duration
	MaxImageBytes     int64

	Storage storage.Config
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "products_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),

		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		NATSURL: os.Getenv("NATS_URL"),

		CategorySource:       getEnv("CATEGORY_SOURCE", CategorySourceDatabase),
		CategoriesServiceURL: getEnv("CATEGORIES_SERVICE_URL", "http://categories-service:8080"),

		DefaultPageSize: getInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:     getInt("MAX_PAGE_SIZE", 100),

		MaxUploadBytes:    int64(getInt("MAX_IMPORT_FILE_MB", 10)) << 20,
		ParseTimeout:      getDuration("PARSE_TIMEOUT", 30*time.Second),
		ValidationTimeout: getDuration("VALIDATION_TIMEOUT", 60*time.Second),
		CommitTimeout:     getDuration("COMMIT_TIMEOUT", 2*time.Minute),

		UploadConcurrency: getInt("UPLOAD_CONCURRENCY", models.MaxProductImages),
		UploadTimeout:     getDuration("UPLOAD_TIMEOUT", 30*time.Second),
		UploadRetries:     getInt("UPLOAD_RETRIES", 2),
		UploadBackoff:     getDuration("UPLOAD_BACKOFF", 200*time.Millisecond),
		MaxImageBytes:     int64(getInt("MAX_IMAGE_MB", 8)) << 20,

		Storage: storage.Config{
			Provider:           getEnv("STORAGE_PROVIDER", storage.ProviderGCS),
			AccessBaseURL:      os.Getenv("STORAGE_ACCESS_BASE_URL"),
			GCSBucket:          os.Getenv("GCS_BUCKET"),
			GCSCredentialsJSON: os.Getenv("GCS_CREDENTIALS_JSON"),
			S3Bucket:           os.Getenv("AWS_S3_BUCKET"),
			S3Region:           getEnv("AWS_REGION", "us-east-1"),
			S3Endpoint:         getEnv("AWS_S3_ENDPOINT", os.Getenv("AWS_ENDPOINT")),
			S3AccessKey:        os.Getenv("AWS_ACCESS_KEY_ID"),
			S3Secret:           os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
	}
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func InitDB(cfg *Config, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Categories are owned by categories-service and only read here.
	log.Info("Running auto-migrations...")
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.WithError(err).Warn("Migration constraint warning (safe to ignore)")
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Info("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getDuration accepts Go durations ("45s") or plain seconds ("45").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
