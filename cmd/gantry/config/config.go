package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Workers   int
	LogLevel  string
	LogFormat string
	Anonymous bool
	Insecure  bool
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Workers:   getEnvInt("GANTRY_WORKERS", 0),
		LogLevel:  getEnv("GANTRY_LOG_LEVEL", "info"),
		LogFormat: getEnv("GANTRY_LOG_FORMAT", "text"),
		Anonymous: getEnvBool("GANTRY_ANONYMOUS", false),
		Insecure:  getEnvBool("GANTRY_INSECURE", false),
	}

	return cfg
}

// SlogLevel maps the configured log level onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
