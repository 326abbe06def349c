package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Stripe      StripeConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type StripeConfig struct {
	APIKey string
}

type StorageConfig struct {
	Region      string
	EventBucket string
	UserBucket  string
	CDNBaseURL  string
}

type RateLimitConfig struct {
	PublicPerMinute int
	UserPerMinute   int
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is read first when present, matching how the deployed service is
// configured.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "allez"),
		},
		Stripe: StripeConfig{
			APIKey: getEnv("STRIPE_PRIVATE_KEY", ""),
		},
		Storage: StorageConfig{
			Region:      getEnv("AWS_REGION", "us-east-2"),
			EventBucket: getEnv("EVENT_IMAGE_BUCKET", "allez-event-images"),
			UserBucket:  getEnv("USER_IMAGE_BUCKET", "allez-user-images"),
			CDNBaseURL:  getEnv("CLOUDFRONT_URL", ""),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			UserPerMinute:   getEnvInt("RATE_LIMIT_USER", 300),
		},
		CORS: CORSConfig{
			AllowAllOrigins: getEnv("ENVIRONMENT", "development") == "development",
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Stripe.APIKey == "" {
		return Config{}, fmt.Errorf("STRIPE_PRIVATE_KEY is required")
	}
	return cfg, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
