// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	FrontendURL         string
	DBPath              string
	MaxRequestBodyBytes int64
	Chatbot             ChatbotConfig
	Session             SessionConfig
	RateLimit           RateLimitConfig
}

// ChatbotConfig controls the outbound chatbot client.
type ChatbotConfig struct {
	URL              string
	Timeout          time.Duration // 0 = wait until the service answers
	MaxResponseBytes int64
	TimestampLayout  string
}

// SessionConfig controls page session lifetime and transcript retention.
type SessionConfig struct {
	TTL              time.Duration
	SweepInterval    time.Duration
	HistoryRetention time.Duration // 0 = keep forever
}

// RateLimitConfig limits query submissions per visitor.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/hrchat.db"),
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		Chatbot: ChatbotConfig{
			URL:              getEnv("CHATBOT_URL", ""),
			Timeout:          getEnvDuration("CHATBOT_TIMEOUT", 0),
			MaxResponseBytes: int64(getEnvInt("CHATBOT_MAX_RESPONSE_BYTES", 1<<20)),
			TimestampLayout:  getEnv("TIMESTAMP_LAYOUT", "03:04 PM"),
		},
		Session: SessionConfig{
			TTL:              getEnvDuration("SESSION_TTL", 60*time.Minute),
			SweepInterval:    getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			HistoryRetention: getEnvDuration("HISTORY_RETENTION", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 1),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Chatbot.URL == "" {
		return fmt.Errorf("CHATBOT_URL cannot be empty")
	}
	u, err := url.Parse(c.Chatbot.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CHATBOT_URL must be an absolute http(s) URL, got %q", c.Chatbot.URL)
	}
	if c.Chatbot.Timeout < 0 {
		return fmt.Errorf("CHATBOT_TIMEOUT cannot be negative")
	}
	if c.Chatbot.MaxResponseBytes <= 0 {
		return fmt.Errorf("CHATBOT_MAX_RESPONSE_BYTES must be > 0")
	}
	if c.Chatbot.TimestampLayout == "" {
		return fmt.Errorf("TIMESTAMP_LAYOUT cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Session.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the API.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
