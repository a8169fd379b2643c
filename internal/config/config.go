// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Remote      RemoteConfig      `yaml:"remote"`
	Auth        AuthConfig        `yaml:"auth"`
	Cache       CacheConfig       `yaml:"cache"`
	Sync        SyncConfig        `yaml:"sync"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

// AlertsConfig configures operator notification channels. All optional.
type AlertsConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"` // dev, staging, prod
}

// RemoteConfig points at the Remote Order Service
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=120"`
	StreamEnabled  bool   `yaml:"stream_enabled"` // /ws/orders subscription
}

// AuthConfig carries the session credentials
type AuthConfig struct {
	Token        Secret `yaml:"token" validate:"required"`
	RefreshToken Secret `yaml:"refresh_token"`
	UserID       string `yaml:"user_id" validate:"required"`
	Role         string `yaml:"role" validate:"oneof=customer deliverer admin"`
}

// CacheConfig selects and locates the local cache store
type CacheConfig struct {
	Backend string `yaml:"backend" validate:"oneof=sqlite memory"`
	Path    string `yaml:"path"` // sqlite file, required for sqlite backend
}

// SyncConfig tunes reconciliation and background refresh
type SyncConfig struct {
	ReconcileIntervalSeconds int     `yaml:"reconcile_interval_seconds" validate:"min=1,max=3600"`
	RefreshRatePerSecond     float64 `yaml:"refresh_rate_per_second" validate:"min=0"`
	RefreshBurst             int     `yaml:"refresh_burst" validate:"min=1,max=100"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	SyncPoolSize   int `yaml:"sync_pool_size" validate:"min=1,max=100"`
	SyncPoolBuffer int `yaml:"sync_pool_buffer" validate:"min=1,max=10000"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "campus_courier"
	}
	if c.App.Environment == "" {
		c.App.Environment = "dev"
	}
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = 15
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "sqlite"
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		c.Cache.Path = "campus_courier.db"
	}
	if c.Sync.ReconcileIntervalSeconds == 0 {
		c.Sync.ReconcileIntervalSeconds = 60
	}
	if c.Sync.RefreshRatePerSecond == 0 {
		c.Sync.RefreshRatePerSecond = 1
	}
	if c.Sync.RefreshBurst == 0 {
		c.Sync.RefreshBurst = 3
	}
	if c.Concurrency.SyncPoolSize == 0 {
		c.Concurrency.SyncPoolSize = 4
	}
	if c.Concurrency.SyncPoolBuffer == 0 {
		c.Concurrency.SyncPoolBuffer = 64
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Auth.Role == "" {
		c.Auth.Role = "customer"
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateRemote(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateAuth(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateCache(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSync(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return ValidationError{Field: "remote.base_url", Value: "", Message: "is required"}
	}
	if !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return ValidationError{Field: "remote.base_url", Value: c.Remote.BaseURL, Message: "must be an http(s) URL"}
	}
	if c.Remote.TimeoutSeconds < 1 || c.Remote.TimeoutSeconds > 120 {
		return ValidationError{Field: "remote.timeout_seconds", Value: c.Remote.TimeoutSeconds, Message: "must be between 1 and 120"}
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.Token == "" {
		return ValidationError{Field: "auth.token", Value: "", Message: "is required"}
	}
	if c.Auth.UserID == "" {
		return ValidationError{Field: "auth.user_id", Value: "", Message: "is required"}
	}
	switch c.Auth.Role {
	case "customer", "deliverer", "admin":
	default:
		return ValidationError{Field: "auth.role", Value: c.Auth.Role, Message: "must be one of customer, deliverer, admin"}
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			return ValidationError{Field: "cache.path", Value: "", Message: "is required for the sqlite backend"}
		}
	default:
		return ValidationError{Field: "cache.backend", Value: c.Cache.Backend, Message: "must be sqlite or memory"}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.ReconcileIntervalSeconds < 1 || c.Sync.ReconcileIntervalSeconds > 3600 {
		return ValidationError{Field: "sync.reconcile_interval_seconds", Value: c.Sync.ReconcileIntervalSeconds, Message: "must be between 1 and 3600"}
	}
	if c.Sync.RefreshRatePerSecond < 0 {
		return ValidationError{Field: "sync.refresh_rate_per_second", Value: c.Sync.RefreshRatePerSecond, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateSystem() error {
	switch strings.ToUpper(c.System.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		return nil
	default:
		return ValidationError{Field: "system.log_level", Value: c.System.LogLevel, Message: "must be one of DEBUG, INFO, WARN, ERROR, FATAL"}
	}
}

// RemoteTimeout returns the request deadline as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// ReconcileInterval returns the reconciliation period as a duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Sync.ReconcileIntervalSeconds) * time.Second
}

// String returns a printable form with secrets redacted.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config (marshal failed: %v)", err)
	}
	return string(out)
}

// expandEnvVars replaces ${VAR} references in the raw YAML
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}
