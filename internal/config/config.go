// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/belai/internal/shared"
)

// DefaultAIBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultAIModel is the chat model used when AI_MODEL is unset.
const DefaultAIModel = "gemini-2.5-flash"

// MissingKeyBanner is shown when no AI credential is configured.
const MissingKeyBanner = "AI API key is not configured. AI features will be limited or non-functional."

// Config holds all application configuration.
type Config struct {
	Port        string
	BindAddr    string
	FrontendURL string
	// AllowAnyOrigin admits browser pages from every origin. Development only.
	AllowAnyOrigin bool
	DBPath         string
	AI             AIConfig
	TutorAddr      string
	TTSCommand     string
	// Location is the time zone that defines practice calendar days.
	Location  *time.Location
	RateLimit RateLimitConfig
}

// AIConfig configures the OpenAI-compatible chat backend.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// RateLimitConfig throttles AI-backed HTTP endpoints.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	loc := time.Local
	if tz := getEnv("PRACTICE_TIMEZONE", ""); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: PRACTICE_TIMEZONE: %w", err)
		}
		loc = l
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		BindAddr:       getEnv("BIND_ADDR", "127.0.0.1"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowAnyOrigin: getEnvBool("DEV_ALLOW_ANY_ORIGIN", false),
		DBPath:         getEnv("DB_PATH", "./data/belai.db"),
		AI: AIConfig{
			APIKey:  firstEnv("AI_API_KEY", "GEMINI_API_KEY", "API_KEY"),
			BaseURL: getEnv("AI_BASE_URL", DefaultAIBaseURL),
			Model:   getEnv("AI_MODEL", DefaultAIModel),
			Timeout: getEnvDuration("AI_TIMEOUT", 30*time.Second),
		},
		TutorAddr:  getEnv("TUTOR_ADDR", ""),
		TTSCommand: getEnv("TTS_COMMAND", ""),
		Location:   loc,
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing AI credential is not a validation failure; see ConfigurationError.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("AI_MODEL cannot be empty")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// ConfigurationError reports a missing AI credential. It returns nil when a
// key is set or a tutor service provides the AI features instead.
func (c *Config) ConfigurationError() error {
	if c.TutorAddr != "" {
		return nil
	}
	key := strings.TrimSpace(c.AI.APIKey)
	if key == "" || key == "YOUR_API_KEY" {
		return &shared.ConfigurationError{Op: "load AI credential", Err: errors.New(MissingKeyBanner)}
	}
	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AllowAnyOrigin
}

// AllowedOrigins lists the cross-origin pages that may use the app. With no
// FRONTEND_URL only the embedded same-origin UI is served.
func (c *Config) AllowedOrigins() []string {
	switch {
	case c.AllowAnyOrigin:
		return []string{"*"}
	case c.FrontendURL != "":
		return []string{c.FrontendURL}
	default:
		return nil
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
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
