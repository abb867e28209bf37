package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/observability"
	"github.com/hubgate/hubgate/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// GitHub OAuth application configuration
	GitHub GitHubConfig

	// Storage configuration
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// PublicURL is the externally visible base URL, used to build the
	// OAuth redirect URL when one is not set explicitly.
	PublicURL string

	// SecureCookies marks session and state cookies Secure. Disable only
	// for plain-HTTP local development.
	SecureCookies bool
}

// AuthConfig holds the mode selection and credential settings
type AuthConfig struct {
	// Mode selects single_user or multi_user; resolved once at startup.
	Mode auth.Mode

	// SingleUserAuthEnabled turns the OAuth flow on in single-user mode.
	SingleUserAuthEnabled bool

	// AllowedIdentity is the one provider login permitted in single-user
	// mode with auth enabled.
	AllowedIdentity string

	// AdminIdentity is granted the admin role on first login in
	// multi-user mode.
	AdminIdentity string

	// DefaultProviderToken backs repository operations in single-user
	// mode without auth. Optional.
	DefaultProviderToken string

	// SigningKey signs session tokens. Required whenever a strategy
	// issues them.
	SigningKey string

	// EncryptionKey encrypts provider tokens at rest. Must be 16, 24, or
	// 32 bytes. Required in multi-user mode.
	EncryptionKey string

	// TokenTTL bounds session credential lifetime.
	TokenTTL time.Duration
}

// GitHubConfig holds the OAuth application credentials
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides for tests and GitHub Enterprise installs.
	AuthURL  string
	TokenURL string
	APIBase  string
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver      storage.Driver
	PostgresURL string
	SQLitePath  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		GitHub:        loadGitHubConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if cfg.GitHub.RedirectURL == "" {
		cfg.GitHub.RedirectURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/v1/auth/github/callback"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HUBGATE_HOST", "0.0.0.0"),
		Port:            getEnv("HUBGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("HUBGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("HUBGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("HUBGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("HUBGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		PublicURL:       getEnv("HUBGATE_PUBLIC_URL", "http://localhost:8080"),
		SecureCookies:   getEnvBool("HUBGATE_SECURE_COOKIES", true),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Mode:                  auth.Mode(getEnv("HUBGATE_MODE", string(auth.ModeSingleUser))),
		SingleUserAuthEnabled: getEnvBool("HUBGATE_SINGLE_USER_AUTH", false),
		AllowedIdentity:       getEnv("HUBGATE_ALLOWED_IDENTITY", ""),
		AdminIdentity:         getEnv("HUBGATE_ADMIN_IDENTITY", ""),
		DefaultProviderToken:  getEnv("HUBGATE_DEFAULT_GITHUB_TOKEN", ""),
		SigningKey:            getEnv("HUBGATE_SIGNING_KEY", ""),
		EncryptionKey:         getEnv("HUBGATE_ENCRYPTION_KEY", ""),
		TokenTTL:              getEnvDuration("HUBGATE_TOKEN_TTL", 30*time.Minute),
	}
}

func loadGitHubConfig() GitHubConfig {
	cfg := GitHubConfig{
		ClientID:     getEnv("HUBGATE_GITHUB_CLIENT_ID", ""),
		ClientSecret: getEnv("HUBGATE_GITHUB_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("HUBGATE_GITHUB_REDIRECT_URL", ""),
		AuthURL:      getEnv("HUBGATE_GITHUB_AUTH_URL", ""),
		TokenURL:     getEnv("HUBGATE_GITHUB_TOKEN_URL", ""),
		APIBase:      getEnv("HUBGATE_GITHUB_API_BASE", ""),
	}
	if scopes := getEnv("HUBGATE_GITHUB_SCOPES", ""); scopes != "" {
		for _, scope := range strings.Split(scopes, ",") {
			if trimmed := strings.TrimSpace(scope); trimmed != "" {
				cfg.Scopes = append(cfg.Scopes, trimmed)
			}
		}
	}
	return cfg
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:      storage.Driver(getEnv("HUBGATE_STORAGE_DRIVER", string(storage.DriverSQLite))),
		PostgresURL: getEnv("HUBGATE_POSTGRES_URL", ""),
		SQLitePath:  getEnv("HUBGATE_SQLITE_PATH", "hubgate.db"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("HUBGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("HUBGATE_METRICS_ENABLED", true),
	}
}

// AuthRequired reports whether the configured mode issues session
// credentials.
func (c *Config) AuthRequired() bool {
	return c.Auth.Mode == auth.ModeMultiUser || c.Auth.SingleUserAuthEnabled
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Auth.Mode {
	case auth.ModeSingleUser, auth.ModeMultiUser:
	default:
		return fmt.Errorf("invalid mode: %s (must be single_user or multi_user)", c.Auth.Mode)
	}

	if c.Auth.Mode == auth.ModeSingleUser && c.Auth.SingleUserAuthEnabled && c.Auth.AllowedIdentity == "" {
		return fmt.Errorf("allowed identity is required in single-user mode with auth enabled")
	}
	if c.Auth.Mode == auth.ModeMultiUser && c.Auth.AdminIdentity == "" {
		return fmt.Errorf("admin identity is required in multi-user mode")
	}

	if c.AuthRequired() {
		if c.GitHub.ClientID == "" || c.GitHub.ClientSecret == "" {
			return fmt.Errorf("github client id and secret are required when auth is enabled")
		}
		if c.Auth.SigningKey == "" {
			return fmt.Errorf("signing key is required when auth is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("token ttl must be positive")
		}
	}

	if c.Auth.Mode == auth.ModeMultiUser {
		switch len(c.Auth.EncryptionKey) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("encryption key must be 16, 24, or 32 bytes in multi-user mode")
		}
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}

	return nil
}

// DSN returns the data source name for the configured driver.
func (c *StorageConfig) DSN() string {
	if c.Driver == storage.DriverPostgres {
		return c.PostgresURL
	}
	return c.SQLitePath
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
