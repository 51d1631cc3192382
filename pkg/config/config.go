package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platware/orgauth/pkg/observability"
)

// Config holds all application configuration. Values come from an optional
// YAML file first, then environment variables override field by field.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	AccessControl AccessControlConfig `yaml:"access_control"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// RedisConfig holds the optional shared statement cache configuration.
// When Addr is empty the in-process cache is used.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// AccessControlConfig holds access-control policy knobs
type AccessControlConfig struct {
	MaximumRolesPerOrganization     int    `yaml:"max_roles_per_org"`
	MaximumResourcesPerOrganization int    `yaml:"max_resources_per_org"`
	CompiledRoleCacheSize           int    `yaml:"compiled_role_cache_size"`
	InvitationTTL                   time.Duration `yaml:"invitation_ttl"`
	InvitationSweepSchedule         string `yaml:"invitation_sweep_schedule"`
}

// AuditConfig holds audit sink configuration
type AuditConfig struct {
	DBEnabled bool   `yaml:"db_enabled"`
	FilePath  string `yaml:"file_path"`
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPort    string `yaml:"metrics_port"`
}

// LoadConfig loads configuration from the file named by ORGAUTH_CONFIG_FILE
// (if set) and from environment variables, then validates it.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ORGAUTH_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
		},
		Session: SessionConfig{
			Issuer: "orgauth",
			TTL:    24 * time.Hour,
		},
		AccessControl: AccessControlConfig{
			MaximumRolesPerOrganization:     0, // unbounded
			MaximumResourcesPerOrganization: 50,
			CompiledRoleCacheSize:           512,
			InvitationTTL:                   7 * 24 * time.Hour,
			InvitationSweepSchedule:         "@every 15m",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			MetricsPort:    "9090",
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "ORGAUTH_HOST")
	setString(&c.Server.Port, "ORGAUTH_PORT")
	setDuration(&c.Server.ReadTimeout, "ORGAUTH_READ_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "ORGAUTH_WRITE_TIMEOUT")
	setDuration(&c.Server.IdleTimeout, "ORGAUTH_IDLE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "ORGAUTH_SHUTDOWN_TIMEOUT")

	setString(&c.Database.URL, "ORGAUTH_POSTGRES_URL")
	setInt(&c.Database.MaxOpenConns, "ORGAUTH_POSTGRES_MAX_CONNS")
	setInt(&c.Database.MaxIdleConns, "ORGAUTH_POSTGRES_IDLE_CONNS")
	setDuration(&c.Database.ConnLifetime, "ORGAUTH_POSTGRES_CONN_LIFETIME")

	setString(&c.Redis.Addr, "ORGAUTH_REDIS_ADDR")
	setString(&c.Redis.Password, "ORGAUTH_REDIS_PASSWORD")
	setString(&c.Redis.Prefix, "ORGAUTH_REDIS_PREFIX")

	setString(&c.Session.Secret, "ORGAUTH_SESSION_SECRET")
	setString(&c.Session.Issuer, "ORGAUTH_SESSION_ISSUER")
	setDuration(&c.Session.TTL, "ORGAUTH_SESSION_TTL")

	setInt(&c.AccessControl.MaximumRolesPerOrganization, "ORGAUTH_MAX_ROLES_PER_ORG")
	setInt(&c.AccessControl.MaximumResourcesPerOrganization, "ORGAUTH_MAX_RESOURCES_PER_ORG")
	setInt(&c.AccessControl.CompiledRoleCacheSize, "ORGAUTH_ROLE_CACHE_SIZE")
	setDuration(&c.AccessControl.InvitationTTL, "ORGAUTH_INVITATION_TTL")
	setString(&c.AccessControl.InvitationSweepSchedule, "ORGAUTH_INVITATION_SWEEP_SCHEDULE")

	setBool(&c.Audit.DBEnabled, "ORGAUTH_AUDIT_DB_ENABLED")
	setString(&c.Audit.FilePath, "ORGAUTH_AUDIT_FILE")

	setString(&c.Observability.LogLevel, "ORGAUTH_LOG_LEVEL")
	setBool(&c.Observability.MetricsEnabled, "ORGAUTH_METRICS_ENABLED")
	setString(&c.Observability.MetricsPort, "ORGAUTH_METRICS_PORT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Observability.MetricsEnabled {
		if c.Observability.MetricsPort == "" {
			return fmt.Errorf("metrics port is required when metrics are enabled")
		}
		if c.Observability.MetricsPort == c.Server.Port {
			return fmt.Errorf("server port and metrics port must be different")
		}
	}
	if c.AccessControl.MaximumResourcesPerOrganization <= 0 {
		return fmt.Errorf("max resources per organization must be positive")
	}
	return nil
}

// LogLevel converts the configured log level string.
func (c *Config) LogLevel() observability.LogLevel {
	switch strings.ToLower(c.Observability.LogLevel) {
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

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = duration
		}
	}
}
