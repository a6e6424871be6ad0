// Package config loads and validates application configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and content backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendRTDB     = "rtdb"
	BackendPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	AppName  string `mapstructure:"APP_NAME"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// BaseURL is the public origin of the site; email links return to BaseURL/login.
	BaseURL      string `mapstructure:"BASE_URL"`
	CORSOrigins  string `mapstructure:"CORS_ORIGINS"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	// Database (optional; empty keeps users and the link ledger in memory)
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// OAuth2, Google
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	// OAuth2, GitHub
	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `mapstructure:"GITHUB_REDIRECT_URL"`

	// Email sign-in links
	LinkSecret string `mapstructure:"LINK_SECRET"`
	LinkIssuer string `mapstructure:"LINK_ISSUER"`
	LinkTTL    string `mapstructure:"LINK_TTL"`

	// Per-client durable storage
	StorageBackend   string `mapstructure:"STORAGE_BACKEND"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	ClientStorageTTL string `mapstructure:"CLIENT_STORAGE_TTL"`

	// Content
	ContentBackend      string `mapstructure:"CONTENT_BACKEND"`
	FirebaseDatabaseURL string `mapstructure:"FIREBASE_DATABASE_URL"`
	FirebaseAuthToken   string `mapstructure:"FIREBASE_AUTH_TOKEN"`
	ContentCacheTTL     string `mapstructure:"CONTENT_CACHE_TTL"`
	DefaultLanguage     string `mapstructure:"DEFAULT_LANGUAGE"`

	// EmailJS
	EmailJSServiceID         string `mapstructure:"EMAILJS_SERVICE_ID"`
	EmailJSPublicKey         string `mapstructure:"EMAILJS_PUBLIC_KEY"`
	EmailJSPrivateKey        string `mapstructure:"EMAILJS_PRIVATE_KEY"`
	EmailJSBaseURL           string `mapstructure:"EMAILJS_BASE_URL"`
	EmailJSContactTemplateID string `mapstructure:"EMAILJS_CONTACT_TEMPLATE_ID"`
	EmailJSSignInTemplateID  string `mapstructure:"EMAILJS_SIGNIN_TEMPLATE_ID"`
	ContactRateLimit         int    `mapstructure:"CONTACT_RATE_LIMIT"` // per client per minute

	// Audit
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	AdminEmails     string `mapstructure:"ADMIN_EMAILS"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("APP_NAME", "God's Plan")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "http://localhost:3001")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:3001/auth/callback")
	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_REDIRECT_URL", "http://localhost:3001/auth/callback")
	v.SetDefault("LINK_SECRET", "")
	v.SetDefault("LINK_ISSUER", "godsplan")
	v.SetDefault("LINK_TTL", "1h")
	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CLIENT_STORAGE_TTL", "720h")
	v.SetDefault("CONTENT_BACKEND", BackendRTDB)
	v.SetDefault("FIREBASE_DATABASE_URL", "")
	v.SetDefault("FIREBASE_AUTH_TOKEN", "")
	v.SetDefault("CONTENT_CACHE_TTL", "30s")
	v.SetDefault("DEFAULT_LANGUAGE", "en")
	v.SetDefault("EMAILJS_SERVICE_ID", "")
	v.SetDefault("EMAILJS_PUBLIC_KEY", "")
	v.SetDefault("EMAILJS_PRIVATE_KEY", "")
	v.SetDefault("EMAILJS_BASE_URL", "https://api.emailjs.com")
	v.SetDefault("EMAILJS_CONTACT_TEMPLATE_ID", "")
	v.SetDefault("EMAILJS_SIGNIN_TEMPLATE_ID", "")
	v.SetDefault("CONTACT_RATE_LIMIT", 5)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "site-audit")
	v.SetDefault("ADMIN_EMAILS", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	if len(c.LinkSecret) < 32 {
		return errors.New("config: LINK_SECRET must be at least 32 characters")
	}
	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("config: STORAGE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.StorageBackend)
	}
	switch c.ContentBackend {
	case BackendRTDB:
		if c.FirebaseDatabaseURL == "" {
			return errors.New("config: FIREBASE_DATABASE_URL must be set when CONTENT_BACKEND=rtdb")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when CONTENT_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: CONTENT_BACKEND must be %q or %q, got %q", BackendRTDB, BackendPostgres, c.ContentBackend)
	}
	if c.DefaultLanguage != "en" && c.DefaultLanguage != "hi" {
		return fmt.Errorf("config: DEFAULT_LANGUAGE must be en or hi, got %q", c.DefaultLanguage)
	}
	if c.IsProduction() && !c.CookieSecure {
		return errors.New("config: COOKIE_SECURE must be true when APP_ENV=production")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LinkLifetime parses LinkTTL. Returns 1h if unset or invalid.
func (c *Config) LinkLifetime() time.Duration {
	return parseDuration(c.LinkTTL, time.Hour)
}

// ClientStorageLifetime parses ClientStorageTTL. Returns 720h if unset or invalid.
func (c *Config) ClientStorageLifetime() time.Duration {
	return parseDuration(c.ClientStorageTTL, 720*time.Hour)
}

// ContentCacheLifetime parses ContentCacheTTL. "0s" disables the cache.
func (c *Config) ContentCacheLifetime() time.Duration {
	d, err := time.ParseDuration(c.ContentCacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// CORSOriginsList returns the allowed origins, defaulting to BaseURL.
func (c *Config) CORSOriginsList() []string {
	if list := splitList(c.CORSOrigins); len(list) > 0 {
		return list
	}
	return []string{c.BaseURL}
}

// IsAdmin reports whether email is listed in ADMIN_EMAILS (case-insensitive).
func (c *Config) IsAdmin(email string) bool {
	if email == "" {
		return false
	}
	for _, a := range splitList(c.AdminEmails) {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

// DSN returns a masked connection description for logging.
func (c *Config) DSN() string {
	if c.DatabaseURL == "" {
		return "(in-memory)"
	}
	return "postgres://***@*** (from DATABASE_URL)"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
