package config

import (
	"testing"
	"time"

	"github.com/ashureev/belai/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AI_API_KEY", "GEMINI_API_KEY", "API_KEY", "TUTOR_ADDR", "PRACTICE_TIMEZONE", "FRONTEND_URL", "DEV_ALLOW_ANY_ORIGIN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAIEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
	assert.Equal(t, DefaultAIModel, cfg.AI.Model)
	assert.Equal(t, DefaultAIBaseURL, cfg.AI.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, time.Local, cfg.Location)
	assert.False(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.AllowedOrigins(), "default serves only the same-origin UI")
}

func TestAllowedOrigins(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("FRONTEND_URL", "http://localhost:5173")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins())
	assert.False(t, cfg.IsDevelopment())

	t.Setenv("DEV_ALLOW_ANY_ORIGIN", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	assert.True(t, cfg.IsDevelopment())
}

func TestAPIKeyFallbackOrder(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.AI.APIKey)
	assert.NoError(t, cfg.ConfigurationError())
}

func TestConfigurationErrorWithoutKey(t *testing.T) {
	clearAIEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfgErr := cfg.ConfigurationError()
	require.Error(t, cfgErr)
	assert.True(t, shared.IsConfigurationError(cfgErr))
	assert.Contains(t, cfgErr.Error(), MissingKeyBanner)

	cfg.TutorAddr = "localhost:50051"
	assert.NoError(t, cfg.ConfigurationError())
}

func TestLoadPracticeTimezone(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("PRACTICE_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())

	t.Setenv("PRACTICE_TIMEZONE", "Not/AZone")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"empty model", func(c *Config) { c.AI.Model = "" }, true},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Port:   "8080",
				DBPath: "./data/test.db",
				AI:     AIConfig{Model: DefaultAIModel, Timeout: time.Second},
				RateLimit: RateLimitConfig{
					Requests: 1,
					Window:   time.Second,
				},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
