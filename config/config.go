package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	// Session store (Postgres). A missing URL is a fatal startup error.
	DatabaseURL string

	// Secret shared with the identity service; used to verify bearer tokens
	// presented during the WebSocket handshake.
	AuthJWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	AvatarAPIURL string
	AvatarAPIKey string

	// Optional bearer token guarding operator endpoints (membership repair).
	AdminToken string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "3001"),
		AppMode:       getEnv("APP_MODE", "development"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		S3Region:      getEnv("S3_REGION", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3PublicBase:  getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL:  time.Duration(getEnvAsInt("S3_PRESIGN_TTL_SECONDS", 300)) * time.Second,
		AvatarAPIURL:  getEnv("AVATAR_API_URL", ""),
		AvatarAPIKey:  getEnv("AVATAR_API_KEY", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
