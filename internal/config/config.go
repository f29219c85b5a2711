package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"bireader-backend/internal/models"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	DBMaxConns    int
	MigrationsDir string

	// Redis
	RedisURL     string
	RedisTimeout time.Duration

	// JWT
	JWTSecret string

	// Workers. Zero aligns articles inline in the request.
	WorkerCount int

	// Reading defaults for new accounts
	DefaultTTSSpeed float64

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("ENV", "development"),
		DatabaseURL:     mustGetEnv("DATABASE_URL"),
		DBMaxConns:      getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		MigrationsDir:   getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:        mustGetEnv("REDIS_URL"),
		RedisTimeout:    time.Duration(getEnvAsIntOrDefault("REDIS_TIMEOUT_SECONDS", 10)) * time.Second,
		JWTSecret:       mustGetEnv("JWT_SECRET"),
		WorkerCount:     getEnvAsIntOrDefault("WORKER_COUNT", 5),
		DefaultTTSSpeed: getEnvAsFloatOrDefault("DEFAULT_TTS_SPEED", 1.0),
		FrontendURL:     getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// ReadingDefaults are the settings stored for a newly registered user. An
// out-of-range DEFAULT_TTS_SPEED falls back to the built-in default.
func (c *Config) ReadingDefaults() models.ReadingSettings {
	defaults := models.DefaultReadingSettings()
	candidate := defaults
	candidate.TTSSpeed = c.DefaultTTSSpeed
	if candidate.Validate() != nil {
		return defaults
	}
	return candidate
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
