package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// StatementTimeout bounds every statement server side. Zero leaves the server default.
	StatementTimeout   time.Duration
	// ConnectAttempts is how many pings are tried at startup before giving up.
	ConnectAttempts    int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// UploadConfig controls what the upload path accepts and how results are exposed.
type UploadConfig struct {
	MaxFileSize     int64
	RequireApproval bool
	URLExpiry       time.Duration
	// Integrations below are declared for parity with the hosting platform and are never
	// enabled by this service.
	VirusScanEnabled  bool
	ImageProcessing   bool
	EmailNotification bool
}

// RateLimitConfig holds the sliding window settings for upload admission.
type RateLimitConfig struct {
	Backend      string // memory or redis
	Window       time.Duration
	MaxUploads   int
	MaxBytes     int64
	ClientHeader string
}

// RedisConfig is used when RateLimit.Backend is redis.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// QuotaConfig holds storage quota defaults and the protected account designation.
type QuotaConfig struct {
	DefaultLimit       int64
	ProtectedAccountID string
	AtomicReserve      bool
}

// MaintenanceConfig holds cron specs for background jobs. An empty spec disables the job.
type MaintenanceConfig struct {
	ReconcileCron string
	HealCron      string
	PruneCron     string

	// ReconcileGrace skips accounts with ledger or file activity this recent, so uploads
	// still in flight are not corrected mid-way.
	ReconcileGrace time.Duration
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level    string
	Format   string // json or console
	Filename string
}

// AuthConfig describes how the verified identity reaches this service.
type AuthConfig struct {
	UserHeader string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost       string
	Port          string
	Timezone      string
	StorageDriver string
	Database      DatabaseConfig
	MinIO         MinIOConfig
	Upload        UploadConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	Quota         QuotaConfig
	Maintenance   MaintenanceConfig
	Log           LogConfig
	Auth          AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:       getEnv("APP_HOST", "localhost:8080"),
		Port:          getEnv("PORT", "8080"),
		Timezone:      getEnv("APP_TIMEZONE", "UTC"),
		StorageDriver: getEnv("STORAGE_DRIVER", "minio"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			StatementTimeout:   getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Region:    getEnv("MINIO_REGION", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Upload: UploadConfig{
			MaxFileSize:       getEnvBytes("UPLOAD_MAX_FILE_SIZE", 5*humanize.GiByte),
			RequireApproval:   getEnvBool("UPLOAD_REQUIRE_APPROVAL", false),
			URLExpiry:         getEnvDuration("UPLOAD_URL_EXPIRY", time.Hour),
			VirusScanEnabled:  getEnvBool("UPLOAD_VIRUS_SCAN", false),
			ImageProcessing:   getEnvBool("UPLOAD_IMAGE_PROCESSING", false),
			EmailNotification: getEnvBool("UPLOAD_EMAIL_NOTIFICATION", false),
		},
		RateLimit: RateLimitConfig{
			Backend:      getEnv("RATE_LIMIT_BACKEND", "memory"),
			Window:       getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxUploads:   getEnvInt("RATE_LIMIT_MAX_UPLOADS", 50),
			MaxBytes:     getEnvBytes("RATE_LIMIT_MAX_BYTES", 10*humanize.GiByte),
			ClientHeader: getEnv("RATE_LIMIT_CLIENT_HEADER", "X-Forwarded-For"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Addr:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Quota: QuotaConfig{
			DefaultLimit:       getEnvBytes("QUOTA_DEFAULT_LIMIT", 5*humanize.GiByte),
			ProtectedAccountID: getEnv("PROTECTED_ACCOUNT_ID", ""),
			AtomicReserve:      getEnvBool("QUOTA_ATOMIC_RESERVE", false),
		},
		Maintenance: MaintenanceConfig{
			ReconcileCron: getEnv("RECONCILE_CRON", ""),
			HealCron:      getEnv("HEAL_CRON", "*/10 * * * *"),
			PruneCron:     getEnv("RATE_LIMIT_PRUNE_CRON", "* * * * *"),

			ReconcileGrace: getEnvDuration("RECONCILE_GRACE", 15*time.Minute),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			Filename: getEnv("LOG_FILE", ""),
		},
		Auth: AuthConfig{
			UserHeader: getEnv("AUTH_USER_HEADER", "X-User-ID"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// getEnvBytes accepts plain byte counts as well as "10GiB" or "512 MB".
func getEnvBytes(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := humanize.ParseBytes(v)
		if err == nil && n > 0 {
			return int64(n)
		}
	}
	return def
}
