// Package config loads the process configuration from the environment.
//
// The Config struct is built exactly once in main and handed down by value
// to every component that needs it. Nothing in the codebase reads os.Getenv
// after startup, so tests can construct a Config literal directly.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the server.
type Config struct {
	// Server
	Port         int
	CookieSecure bool

	// Database
	DBPath string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Google OAuth / OpenID Connect
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleIssuerURL    string
	OAuthStateTTL      time.Duration
	OAuthTimeout       time.Duration

	// OAuth state store. Empty RedisAddr selects the in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AI completion
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	AITimeout     time.Duration

	// Chat rate limit (per user)
	ChatRatePerMinute int
	ChatRateBurst     int

	// Logging
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads the configuration from the environment.
// All missing required variables are reported together in one error, so a
// misconfigured deployment fails at startup with the full list.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	require := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.SessionSecret = require("SESSION_SECRET")
	cfg.GeminiAPIKey = require("GEMINI_API_KEY")
	cfg.GoogleClientID = require("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = require("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = require("GOOGLE_REDIRECT_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: required environment variables are not set: %v", missing)
	}
	if len(cfg.SessionSecret) < 16 {
		return nil, fmt.Errorf("config: SESSION_SECRET must be at least 16 characters")
	}

	port, err := getEnvIntStrict("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.DBPath = getEnvString("DB_PATH", "data/promptcraft.db")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.GoogleIssuerURL = getEnvString("GOOGLE_ISSUER_URL", "https://accounts.google.com")
	cfg.OAuthStateTTL = getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute)
	cfg.OAuthTimeout = getEnvDuration("OAUTH_TIMEOUT", 10*time.Second)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash-lite")
	cfg.GeminiBaseURL = getEnvString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 10*time.Second)
	cfg.ChatRatePerMinute = getEnvInt("CHAT_RATE_PER_MINUTE", 20)
	cfg.ChatRateBurst = getEnvInt("CHAT_RATE_BURST", 5)
	cfg.LogLevel = parseLevel(getEnvString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", "text"))

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvIntStrict is getEnvInt for values where a typo must not silently
// fall back to the default (a wrong port is worse than no start).
func getEnvIntStrict(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
