// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the realtime service.
type Config struct {
	// HTTP server
	Port               string
	CORSAllowedOrigins string

	// Ephemeral store
	StoreDriver   string // "redis" or "memory"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Token verification
	JWTSecret string
	JWTIssuer string

	// User directory
	DirectoryDBPath   string
	DirectorySeedFile string

	// Realtime behavior
	HandshakeTimeout  time.Duration
	PresenceTTL       time.Duration
	ActivityTTL       time.Duration
	NotificationTTL   time.Duration
	NotificationLimit int
	CleanupSchedule   string
	ClientRateLimit   float64
	ClientRateBurst   int
}

// Load reads the configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "3000"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		StoreDriver:   getEnv("STORE_DRIVER", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		DirectoryDBPath:   getEnv("DIRECTORY_DB_PATH", "qa_directory.db"),
		DirectorySeedFile: getEnv("DIRECTORY_SEED_FILE", ""),

		HandshakeTimeout:  getEnvAsDuration("HANDSHAKE_TIMEOUT", 5*time.Second),
		PresenceTTL:       getEnvAsDuration("PRESENCE_TTL", 5*time.Minute),
		ActivityTTL:       getEnvAsDuration("ACTIVITY_TTL", 5*time.Minute),
		NotificationTTL:   getEnvAsDuration("NOTIFICATION_TTL", 7*24*time.Hour),
		NotificationLimit: getEnvAsInt("NOTIFICATION_LIMIT", 50),
		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "@every 1m"),
		ClientRateLimit:   getEnvAsFloat("CLIENT_RATE_LIMIT", 20),
		ClientRateBurst:   getEnvAsInt("CLIENT_RATE_BURST", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
