package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the CleanStreet services
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Auth
	JWTSecret string
	JWTExpiry time.Duration

	// Email
	SendGridAPIKey string
	FromName       string
	FromEmail      string
	ClientURL      string
	AdminURL       string

	// Notification queue. Empty AMQPURL switches to in-process delivery.
	AMQPURL          string
	NotifyExchange   string
	NotifyQueue      string
	NotifyRoutingKey string
	NotifyMaxRetries int
	NotifyWorkers    int

	// Photo storage
	StorageBackend string
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3PublicURL    string
	MaxPhotos      int
	MaxPhotoBytes  int64

	// Stats cache. Empty RedisAddr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// Rate limiting for auth and submission endpoints
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load loads configuration from the environment, reading .env first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to load .env file: %v", err)
	}

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "cleanstreet"),

		Port:           getEnv("PORT", "5000"),
		AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", "cleanstreet-dev-secret"),
		JWTExpiry: time.Duration(getIntEnv("JWT_EXPIRE_HOURS", 7*24)) * time.Hour,

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		FromName:       getEnv("SENDGRID_FROM_NAME", "CleanStreet"),
		FromEmail:      getEnv("SENDGRID_FROM_EMAIL", "noreply@cleanstreet.local"),
		ClientURL:      strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:3000"), "/"),
		AdminURL:       strings.TrimRight(getEnv("ADMIN_URL", "http://localhost:3001"), "/"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		NotifyExchange:   getEnv("NOTIFY_EXCHANGE", "cleanstreet-notifications"),
		NotifyQueue:      getEnv("NOTIFY_QUEUE", "cleanstreet-email"),
		NotifyRoutingKey: getEnv("NOTIFY_ROUTING_KEY", "email"),
		NotifyMaxRetries: getIntEnv("RABBITMQ_MAX_RETRIES", 5),
		NotifyWorkers:    getIntEnv("NOTIFY_WORKERS", 4),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("AWS_REGION", "us-east-1"),
		S3PublicURL:    strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
		MaxPhotos:      getIntEnv("MAX_PHOTOS", 5),
		MaxPhotoBytes:  int64(getIntEnv("MAX_PHOTO_MB", 10)) << 20,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		StatsCacheTTL: getDurationEnv("STATS_CACHE_TTL", 30*time.Second),

		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 20),
	}

	return cfg
}

// MySQLDSN returns the go-sql-driver DSN for the configured database.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&multiStatements=false",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
