package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, BackendLocal, cfg.Browser.Backend)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2.0, cfg.Browser.ScaleFactor)
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 0, cfg.RatePerHour)
	assert.Equal(t, 4, cfg.Browser.MaxSessions)
	assert.Equal(t, 15*time.Minute, cfg.Browser.MaxLifetime)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_KEY", " secret ")
	t.Setenv("WALLA_USER", "ops@example.com")
	t.Setenv("WALLA_PASS", "hunter2")
	t.Setenv("WALLA_BASE_URL", "https://walla.test/")
	t.Setenv("WALLA_TENANT", "studio")
	t.Setenv("BROWSER_BACKEND", "DOCKER")
	t.Setenv("EXPORT_RATE_PER_HOUR", "60")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "0")
	t.Setenv("SESSION_MAX_LIFETIME", "20m")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "ops@example.com", cfg.Walla.Username)
	assert.Equal(t, "hunter2", cfg.Walla.Password)
	assert.Equal(t, "https://walla.test", cfg.Walla.BaseURL)
	assert.Equal(t, "studio", cfg.Walla.Tenant)
	assert.Equal(t, BackendDocker, cfg.Browser.Backend)
	assert.Equal(t, 60, cfg.RatePerHour)
	assert.Equal(t, 0, cfg.Browser.MaxSessions)
	assert.Equal(t, 20*time.Minute, cfg.Browser.MaxLifetime)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "PORT", "70000"},
		{"bad backend", "BROWSER_BACKEND", "lambda"},
		{"negative rate", "EXPORT_RATE_PER_HOUR", "-1"},
		{"zero webhook timeout", "WEBHOOK_TIMEOUT", "0s"},
		{"negative sessions", "MAX_CONCURRENT_SESSIONS", "-2"},
		{"zero lifetime", "SESSION_MAX_LIFETIME", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}
