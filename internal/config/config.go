package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port             string
	LogLevel         string
	MaxUploadBytes   int64
	MaxFileRows      int
	BreakdownTopN    int
	RenderSinkURL    string
	RenderSinkSecret string
	HTTPTimeout      time.Duration
	RetryAttempts    int
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the process environment without touching .env files.
func FromEnv() *Config {
	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		timeout = 30 * time.Second
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxFileRows:      getEnvInt("MAX_FILE_ROWS", 50000),
		BreakdownTopN:    getEnvInt("BREAKDOWN_TOP_N", 6),
		RenderSinkURL:    getEnv("RENDER_SINK_URL", ""),
		RenderSinkSecret: getEnv("RENDER_SINK_SECRET", ""),
		HTTPTimeout:      timeout,
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
