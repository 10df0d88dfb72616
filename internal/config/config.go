package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend selects where per-request browsers run
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendDocker Backend = "docker"
)

// Config is read once at startup
type Config struct {
	Port   int
	APIKey string

	Walla WallaConfig

	Browser BrowserConfig

	RatePerHour int
	RateBurst   int

	WebhookTimeout time.Duration

	LogLevel      string
	LogFormat     string
	TracingStdout bool
}

// WallaConfig holds the target site and the default credentials
type WallaConfig struct {
	BaseURL    string
	Tenant     string
	LocationID string
	Username   string
	Password   string
}

// BrowserConfig controls the session launcher
type BrowserConfig struct {
	Backend     Backend
	Headless    bool
	Image       string
	ScaleFactor float64
	// MaxSessions caps concurrently open browsers; 0 means unlimited
	MaxSessions int
	// MaxLifetime force-closes a browser that outlives it
	MaxLifetime time.Duration
}

// Load reads .env if present, then resolves every key from the environment
func Load() (*Config, error) {
	// A missing .env is normal in containers
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("WALLA_BASE_URL", "https://app.hellowalla.com")
	v.SetDefault("BROWSER_BACKEND", string(BackendLocal))
	v.SetDefault("BROWSER_HEADLESS", true)
	v.SetDefault("BROWSER_IMAGE", "browserless/chrome:latest")
	v.SetDefault("DEVICE_SCALE_FACTOR", 2.0)
	v.SetDefault("MAX_CONCURRENT_SESSIONS", 4)
	v.SetDefault("SESSION_MAX_LIFETIME", "15m")
	v.SetDefault("EXPORT_RATE_PER_HOUR", 0)
	v.SetDefault("EXPORT_RATE_BURST", 5)
	v.SetDefault("WEBHOOK_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("TRACING_STDOUT", false)
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:   v.GetInt("PORT"),
		APIKey: strings.TrimSpace(v.GetString("API_KEY")),
		Walla: WallaConfig{
			BaseURL:    strings.TrimRight(v.GetString("WALLA_BASE_URL"), "/"),
			Tenant:     v.GetString("WALLA_TENANT"),
			LocationID: v.GetString("WALLA_LOCATION_ID"),
			Username:   v.GetString("WALLA_USER"),
			Password:   v.GetString("WALLA_PASS"),
		},
		Browser: BrowserConfig{
			Backend:     Backend(strings.ToLower(v.GetString("BROWSER_BACKEND"))),
			Headless:    v.GetBool("BROWSER_HEADLESS"),
			Image:       v.GetString("BROWSER_IMAGE"),
			ScaleFactor: v.GetFloat64("DEVICE_SCALE_FACTOR"),
			MaxSessions: v.GetInt("MAX_CONCURRENT_SESSIONS"),
			MaxLifetime: v.GetDuration("SESSION_MAX_LIFETIME"),
		},
		RatePerHour:    v.GetInt("EXPORT_RATE_PER_HOUR"),
		RateBurst:      v.GetInt("EXPORT_RATE_BURST"),
		WebhookTimeout: v.GetDuration("WEBHOOK_TIMEOUT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		TracingStdout:  v.GetBool("TRACING_STDOUT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Walla.BaseURL == "" {
		return fmt.Errorf("WALLA_BASE_URL is required")
	}
	switch c.Browser.Backend {
	case BackendLocal, BackendDocker:
	default:
		return fmt.Errorf("BROWSER_BACKEND must be %q or %q, got %q", BackendLocal, BackendDocker, c.Browser.Backend)
	}
	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("MAX_CONCURRENT_SESSIONS must not be negative")
	}
	if c.Browser.MaxLifetime <= 0 {
		return fmt.Errorf("SESSION_MAX_LIFETIME must be positive")
	}
	if c.RatePerHour < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
