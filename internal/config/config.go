// package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Fetch modes.
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Config holds all application configuration.
type Config struct {
	// fetching
	UserAgent    string
	HTTPTimeout  time.Duration
	FetchRetries int
	FetchBackoff time.Duration
	RateLimitRPS float64 // 0 = unlimited
	FetchMode    string  // "http" or "browser"
	ChromePath   string

	// pagination
	AnomalyThreshold  int64
	MaxAnomalyRetries int
	AnomalyBackoff    time.Duration

	// sinks
	DatabaseURL string
	NatsURL     string
	NatsSubject string

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is read first; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		UserAgent:         getEnv("TCHAN_USER_AGENT", "tchan/0.1"),
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		FetchRetries:      getEnvInt("FETCH_RETRIES", 3),
		FetchBackoff:      getEnvDuration("FETCH_BACKOFF", time.Second),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 0),
		FetchMode:         getEnv("FETCH_MODE", FetchModeHTTP),
		ChromePath:        getEnv("CHROME_PATH", ""),
		AnomalyThreshold:  int64(getEnvInt("ANOMALY_THRESHOLD", 20)),
		MaxAnomalyRetries: getEnvInt("MAX_ANOMALY_RETRIES", 5),
		AnomalyBackoff:    getEnvDuration("ANOMALY_BACKOFF", time.Second),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		NatsURL:           getEnv("NATS_URL", ""),
		NatsSubject:       getEnv("NATS_SUBJECT", "tchan.messages"),
		HTTPPort:          getEnvInt("HTTP_PORT", 3100),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
	}

	if cfg.FetchRetries < 0 {
		return nil, fmt.Errorf("FETCH_RETRIES must be non-negative, got %d", cfg.FetchRetries)
	}
	if cfg.MaxAnomalyRetries < 0 {
		return nil, fmt.Errorf("MAX_ANOMALY_RETRIES must be non-negative, got %d", cfg.MaxAnomalyRetries)
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be non-negative, got %v", cfg.RateLimitRPS)
	}

	if cfg.FetchMode != FetchModeHTTP && cfg.FetchMode != FetchModeBrowser {
		return nil, fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchModeHTTP, FetchModeBrowser, cfg.FetchMode)
	}

	return cfg, nil
}

// ChannelList is a YAML file of channels for batch runs:
//
//	channels:
//	  - "@first"
//	  - https://t.me/second
type ChannelList struct {
	Channels []string `yaml:"channels"`
}

// LoadChannelList reads a channel list file.
func LoadChannelList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel list: %w", err)
	}

	var list ChannelList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse channel list %s: %w", path, err)
	}
	return list.Channels, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("1500ms") or plain seconds ("30").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
