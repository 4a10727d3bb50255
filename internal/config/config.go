// Package config provides configuration management for mosaic using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultMaxSlots           = 9
	defaultDefaultVolume      = 1.0
	defaultTeardownRetries    = 1
	defaultStopRequestTimeout = 10 * time.Second

	defaultStartGracePeriod = 15 * time.Second
	defaultKillGracePeriod  = 5 * time.Second
	defaultReapSchedule     = "@every 30s"

	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 1 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Multiview  MultiviewConfig  `mapstructure:"multiview"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MultiviewConfig holds session registry configuration.
type MultiviewConfig struct {
	// MaxSlots is the hard bound on concurrently held slots. Slot creation
	// beyond this bound is rejected, never queued.
	MaxSlots int `mapstructure:"max_slots"`
	// DefaultVolume is the volume assigned to newly created slots (0.0-1.0).
	DefaultVolume float64 `mapstructure:"default_volume"`
	// TeardownRetries is how many times a failed stop request is retried
	// before the slot is cleared locally anyway.
	TeardownRetries int `mapstructure:"teardown_retries"`
	// StopRequestTimeout bounds a single stop round-trip to the supervisor.
	StopRequestTimeout time.Duration `mapstructure:"stop_request_timeout"`
}

// SupervisorConfig holds process supervisor configuration.
type SupervisorConfig struct {
	// StartGracePeriod is how long a spawned process may run without
	// producing output before the start is treated as failed.
	StartGracePeriod time.Duration `mapstructure:"start_grace_period"`
	// KillGracePeriod is how long to wait after SIGTERM before SIGKILL.
	KillGracePeriod time.Duration `mapstructure:"kill_grace_period"`
	// ReapSchedule is the cron schedule for the terminated-session reaper.
	ReapSchedule string `mapstructure:"reap_schedule"`
}

// HTTPClientConfig holds upstream HTTP client configuration.
type HTTPClientConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MOSAIC_ and use underscores for nesting.
// Example: MOSAIC_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mosaic")
		v.AddConfigPath("$HOME/.mosaic")
	}

	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mosaic.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Multiview defaults
	v.SetDefault("multiview.max_slots", defaultMaxSlots)
	v.SetDefault("multiview.default_volume", defaultDefaultVolume)
	v.SetDefault("multiview.teardown_retries", defaultTeardownRetries)
	v.SetDefault("multiview.stop_request_timeout", defaultStopRequestTimeout)

	// Supervisor defaults
	v.SetDefault("supervisor.start_grace_period", defaultStartGracePeriod)
	v.SetDefault("supervisor.kill_grace_period", defaultKillGracePeriod)
	v.SetDefault("supervisor.reap_schedule", defaultReapSchedule)

	// HTTP client defaults
	v.SetDefault("http_client.timeout", defaultHTTPTimeout)
	v.SetDefault("http_client.retry_attempts", defaultRetryAttempts)
	v.SetDefault("http_client.retry_delay", defaultRetryDelay)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Multiview.MaxSlots < 1 {
		return fmt.Errorf("multiview.max_slots must be at least 1")
	}
	if c.Multiview.DefaultVolume < 0 || c.Multiview.DefaultVolume > 1 {
		return fmt.Errorf("multiview.default_volume must be between 0.0 and 1.0")
	}
	if c.Multiview.TeardownRetries < 0 {
		return fmt.Errorf("multiview.teardown_retries must be non-negative")
	}

	if c.Supervisor.StartGracePeriod <= 0 {
		return fmt.Errorf("supervisor.start_grace_period must be positive")
	}
	if c.Supervisor.KillGracePeriod <= 0 {
		return fmt.Errorf("supervisor.kill_grace_period must be positive")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
