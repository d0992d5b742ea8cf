// Package config provides configuration management for the orchestrator worker.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the worker.
type Config struct {
	Sidecar   SidecarConfig   `mapstructure:"sidecar"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SidecarConfig holds connection configuration for the orchestration sidecar.
type SidecarConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DialTimeout int    `mapstructure:"dialTimeout"` // in seconds
}

// WorkerConfig holds dispatcher lifecycle and concurrency configuration.
type WorkerConfig struct {
	Concurrency      int `mapstructure:"concurrency"`      // bounded pool size for orchestrator/activity work
	ReconnectDelay   int `mapstructure:"reconnectDelay"`    // in seconds, delay before retrying the work-item stream
	HelloTimeout     int `mapstructure:"helloTimeout"`      // in seconds
	ShutdownTimeout  int `mapstructure:"shutdownTimeout"`   // in seconds, bound on stop() joining the dispatcher
}

// HealthConfig holds the admin HTTP surface configuration.
type HealthConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TelemetryConfig holds optional lifecycle-event publishing configuration.
type TelemetryConfig struct {
	// NATSURL is the address of an optional NATS deployment used to publish
	// worker/orchestration lifecycle events for external dashboards. An empty
	// value (the default) means use the in-memory no-op publisher.
	NATSURL  string `mapstructure:"natsUrl"`
	ClientID string `mapstructure:"clientId"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// DialTimeoutDuration returns the sidecar dial timeout as a time.Duration.
func (s *SidecarConfig) DialTimeoutDuration() time.Duration {
	return time.Duration(s.DialTimeout) * time.Second
}

// Address returns the sidecar's host:port dial target.
func (s *SidecarConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReconnectDelayDuration returns the stream-reconnect delay as a time.Duration.
func (w *WorkerConfig) ReconnectDelayDuration() time.Duration {
	return time.Duration(w.ReconnectDelay) * time.Second
}

// HelloTimeoutDuration returns the Hello RPC timeout as a time.Duration.
func (w *WorkerConfig) HelloTimeoutDuration() time.Duration {
	return time.Duration(w.HelloTimeout) * time.Second
}

// ShutdownTimeoutDuration returns the dispatcher join bound as a time.Duration.
func (w *WorkerConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(w.ShutdownTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("ORC_WORKER_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Sidecar defaults
	v.SetDefault("sidecar.host", "localhost")
	v.SetDefault("sidecar.port", 4001)
	v.SetDefault("sidecar.dialTimeout", 10)

	// Worker defaults
	v.SetDefault("worker.concurrency", 16)
	v.SetDefault("worker.reconnectDelay", 5)
	v.SetDefault("worker.helloTimeout", 10)
	v.SetDefault("worker.shutdownTimeout", 30)

	// Health defaults
	v.SetDefault("health.host", "0.0.0.0")
	v.SetDefault("health.port", 8080)

	// Telemetry defaults - empty URL means use the in-memory no-op bus
	v.SetDefault("telemetry.natsUrl", "")
	v.SetDefault("telemetry.clientId", "orchestrator-worker")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix ORC_WORKER_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/orchestrator-worker/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ORC_WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion, so
	// keys where env var naming differs from config key naming need a
	// manual bind.
	_ = v.BindEnv("sidecar.host", "ORC_WORKER_SIDECAR_HOST")
	_ = v.BindEnv("sidecar.port", "ORC_WORKER_SIDECAR_PORT")
	_ = v.BindEnv("worker.concurrency", "ORC_WORKER_CONCURRENCY")
	_ = v.BindEnv("logging.level", "ORC_WORKER_LOG_LEVEL")
	_ = v.BindEnv("telemetry.natsUrl", "ORC_WORKER_TELEMETRY_NATS_URL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orchestrator-worker/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Sidecar.Host == "" {
		errs = append(errs, "sidecar.host is required")
	}
	if cfg.Sidecar.Port <= 0 || cfg.Sidecar.Port > 65535 {
		errs = append(errs, "sidecar.port must be between 1 and 65535")
	}

	if cfg.Worker.Concurrency <= 0 {
		errs = append(errs, "worker.concurrency must be positive")
	}
	if cfg.Worker.ReconnectDelay < 0 {
		errs = append(errs, "worker.reconnectDelay must not be negative")
	}

	if cfg.Health.Port <= 0 || cfg.Health.Port > 65535 {
		errs = append(errs, "health.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
