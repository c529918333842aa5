// Package config provides configuration management for the Karl services.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the Karl services.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig holds task store configuration. Driver selects the backend:
// "memory", "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"` // sqlite file path
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// CacheConfig holds the shared cache configuration.
type CacheConfig struct {
	DefaultTTL      int `mapstructure:"defaultTtl"`      // in seconds
	CleanupInterval int `mapstructure:"cleanupInterval"` // in seconds, 0 disables the sweeper
}

// MonitoringConfig holds the monitoring service configuration.
type MonitoringConfig struct {
	Interval   int              `mapstructure:"interval"`   // collection interval in seconds
	BufferSize int              `mapstructure:"bufferSize"` // samples retained per metric family
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// ThresholdsConfig holds the alerting thresholds shared by the metrics
// collector and the monitoring service.
type ThresholdsConfig struct {
	CPUPercent      float64 `mapstructure:"cpuPercent"`
	MemoryPercent   float64 `mapstructure:"memoryPercent"`
	DiskPercent     float64 `mapstructure:"diskPercent"`
	ErrorRate       float64 `mapstructure:"errorRate"`
	ResponseTimeSec float64 `mapstructure:"responseTimeSec"`
	CacheHitRatio   float64 `mapstructure:"cacheHitRatio"` // alert when below, percent
}

// AlertsConfig holds alert manager configuration.
type AlertsConfig struct {
	Cooldown        int           `mapstructure:"cooldown"`        // in seconds
	DispatchTimeout int           `mapstructure:"dispatchTimeout"` // per-channel, in seconds
	Email           EmailConfig   `mapstructure:"email"`
	Webhook         WebhookConfig `mapstructure:"webhook"`
	Slack           SlackConfig   `mapstructure:"slack"`
}

// EmailConfig holds SMTP notification settings.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhookUrl"`
	Channel    string `mapstructure:"channel"`
}

// AgentConfig holds the task agent runtime configuration.
type AgentConfig struct {
	Name             string `mapstructure:"name"`
	HubURL           string `mapstructure:"hubUrl"`
	PollInterval     int    `mapstructure:"pollInterval"`     // in seconds
	PausedInterval   int    `mapstructure:"pausedInterval"`   // sleep when the hub is paused, in seconds
	FailureThreshold int    `mapstructure:"failureThreshold"` // consecutive failures before the breaker opens
	ResetCooldown    int    `mapstructure:"resetCooldown"`    // breaker reset wait, in seconds
	MaxBackoff       int    `mapstructure:"maxBackoff"`       // backoff ceiling, in seconds
	PauseFailMode    string `mapstructure:"pauseFailMode"`    // fail_open or fail_closed
	ReportsDir       string `mapstructure:"reportsDir"`
	WorkDir          string `mapstructure:"workDir"`
	SimulateQuality  bool   `mapstructure:"simulateQuality"` // skip real toolchain commands
}

// DockerConfig holds Docker client configuration for the cloud agent.
type DockerConfig struct {
	Host           string `mapstructure:"host"`
	APIVersion     string `mapstructure:"apiVersion"`
	DefaultNetwork string `mapstructure:"defaultNetwork"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// DefaultTTLDuration returns the cache default TTL as a time.Duration.
func (c *CacheConfig) DefaultTTLDuration() time.Duration {
	return time.Duration(c.DefaultTTL) * time.Second
}

// IntervalDuration returns the collection interval as a time.Duration.
func (m *MonitoringConfig) IntervalDuration() time.Duration {
	return time.Duration(m.Interval) * time.Second
}

// CooldownDuration returns the alert cooldown as a time.Duration.
func (a *AlertsConfig) CooldownDuration() time.Duration {
	return time.Duration(a.Cooldown) * time.Second
}

// DispatchTimeoutDuration returns the per-channel dispatch timeout as a time.Duration.
func (a *AlertsConfig) DispatchTimeoutDuration() time.Duration {
	return time.Duration(a.DispatchTimeout) * time.Second
}

// PollIntervalDuration returns the poll interval as a time.Duration.
func (a *AgentConfig) PollIntervalDuration() time.Duration {
	return time.Duration(a.PollInterval) * time.Second
}

// PausedIntervalDuration returns the paused sleep as a time.Duration.
func (a *AgentConfig) PausedIntervalDuration() time.Duration {
	return time.Duration(a.PausedInterval) * time.Second
}

// ResetCooldownDuration returns the breaker reset wait as a time.Duration.
func (a *AgentConfig) ResetCooldownDuration() time.Duration {
	return time.Duration(a.ResetCooldown) * time.Second
}

// MaxBackoffDuration returns the backoff ceiling as a time.Duration.
func (a *AgentConfig) MaxBackoffDuration() time.Duration {
	return time.Duration(a.MaxBackoff) * time.Second
}

// detectDefaultLogFormat returns "json" for production environments and
// "text" for terminal/development use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}

	if env := os.Getenv("KARL_ENV"); env == "production" || env == "prod" {
		return "json"
	}

	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database defaults - in-memory store unless a driver is configured
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.path", "corehub.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "karl")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "corehub")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "corehub")
	v.SetDefault("nats.maxReconnects", 10)

	// Cache defaults
	v.SetDefault("cache.defaultTtl", 300)
	v.SetDefault("cache.cleanupInterval", 60)

	// Monitoring defaults
	v.SetDefault("monitoring.interval", 30)
	v.SetDefault("monitoring.bufferSize", 1000)
	v.SetDefault("monitoring.thresholds.cpuPercent", 80)
	v.SetDefault("monitoring.thresholds.memoryPercent", 85)
	v.SetDefault("monitoring.thresholds.diskPercent", 90)
	v.SetDefault("monitoring.thresholds.errorRate", 5)
	v.SetDefault("monitoring.thresholds.responseTimeSec", 2.0)
	v.SetDefault("monitoring.thresholds.cacheHitRatio", 70)

	// Alerts defaults
	v.SetDefault("alerts.cooldown", 300)
	v.SetDefault("alerts.dispatchTimeout", 10)
	v.SetDefault("alerts.email.enabled", false)
	v.SetDefault("alerts.email.host", "localhost")
	v.SetDefault("alerts.email.port", 25)
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.slack.enabled", false)

	// Agent defaults
	v.SetDefault("agent.name", "devagent")
	v.SetDefault("agent.hubUrl", "http://localhost:8080")
	v.SetDefault("agent.pollInterval", 30)
	v.SetDefault("agent.pausedInterval", 60)
	v.SetDefault("agent.failureThreshold", 5)
	v.SetDefault("agent.resetCooldown", 300)
	v.SetDefault("agent.maxBackoff", 300)
	v.SetDefault("agent.pauseFailMode", "fail_open")
	v.SetDefault("agent.reportsDir", "reports")
	v.SetDefault("agent.workDir", ".")
	v.SetDefault("agent.simulateQuality", true)

	// Docker defaults
	v.SetDefault("docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("docker.apiVersion", "1.41")
	v.SetDefault("docker.defaultNetwork", "karl-network")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix KARL_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/karl/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("KARL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion,
	// so bind keys where env var naming differs from config key naming.
	_ = v.BindEnv("agent.hubUrl", "KARL_AGENT_HUB_URL")
	_ = v.BindEnv("agent.pollInterval", "KARL_AGENT_POLL_INTERVAL")
	_ = v.BindEnv("agent.pauseFailMode", "KARL_AGENT_PAUSE_FAIL_MODE")
	_ = v.BindEnv("database.driver", "KARL_DATABASE_DRIVER")
	_ = v.BindEnv("database.dbName", "KARL_DATABASE_DB_NAME")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/karl/")

	// Read config file (ignore if not found)
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

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Database.Driver {
	case "memory":
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres driver")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for the postgres driver")
		}
	default:
		errs = append(errs, "database.driver must be one of: memory, sqlite, postgres")
	}

	if cfg.Monitoring.Interval <= 0 {
		errs = append(errs, "monitoring.interval must be positive")
	}
	if cfg.Monitoring.BufferSize <= 0 {
		errs = append(errs, "monitoring.bufferSize must be positive")
	}

	if cfg.Agent.FailureThreshold <= 0 {
		errs = append(errs, "agent.failureThreshold must be positive")
	}
	if cfg.Agent.PauseFailMode != "fail_open" && cfg.Agent.PauseFailMode != "fail_closed" {
		errs = append(errs, "agent.pauseFailMode must be one of: fail_open, fail_closed")
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

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
