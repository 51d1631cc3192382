package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platware/orgauth/pkg/observability"
)

// setRequiredEnv sets the minimum environment for LoadConfig to validate.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ORGAUTH_POSTGRES_URL", "postgres://localhost/orgauth_test")
	t.Setenv("ORGAUTH_SESSION_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Session.Issuer != "orgauth" {
		t.Errorf("Issuer = %s", cfg.Session.Issuer)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("TTL = %v", cfg.Session.TTL)
	}
	if cfg.AccessControl.MaximumResourcesPerOrganization != 50 {
		t.Errorf("MaximumResourcesPerOrganization = %d", cfg.AccessControl.MaximumResourcesPerOrganization)
	}
	if cfg.AccessControl.InvitationSweepSchedule != "@every 15m" {
		t.Errorf("InvitationSweepSchedule = %s", cfg.AccessControl.InvitationSweepSchedule)
	}
	if !cfg.Observability.MetricsEnabled || cfg.Observability.MetricsPort != "9090" {
		t.Errorf("observability = %+v", cfg.Observability)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ORGAUTH_PORT", "9000")
	t.Setenv("ORGAUTH_SESSION_TTL", "1h")
	t.Setenv("ORGAUTH_MAX_RESOURCES_PER_ORG", "10")
	t.Setenv("ORGAUTH_METRICS_ENABLED", "false")
	t.Setenv("ORGAUTH_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("TTL = %v", cfg.Session.TTL)
	}
	if cfg.AccessControl.MaximumResourcesPerOrganization != 10 {
		t.Errorf("MaximumResourcesPerOrganization = %d", cfg.AccessControl.MaximumResourcesPerOrganization)
	}
	if cfg.Observability.MetricsEnabled {
		t.Error("MetricsEnabled not overridden")
	}
	if cfg.LogLevel() != observability.DebugLevel {
		t.Errorf("LogLevel = %v", cfg.LogLevel())
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "3000"
redis:
  addr: "localhost:6379"
  prefix: "test:ac"
audit:
  db_enabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORGAUTH_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "3000" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Prefix != "test:ac" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if !cfg.Audit.DBEnabled {
		t.Error("DBEnabled not read from file")
	}
	// Untouched sections keep their defaults.
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"3000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORGAUTH_CONFIG_FILE", path)
	t.Setenv("ORGAUTH_PORT", "4000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "4000" {
		t.Errorf("Port = %s, env must override the file", cfg.Server.Port)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ORGAUTH_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaults()
		cfg.Database.URL = "postgres://localhost/test"
		cfg.Session.Secret = "secret"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }},
		{"missing database URL", func(c *Config) { c.Database.URL = "" }},
		{"missing session secret", func(c *Config) { c.Session.Secret = "" }},
		{"missing metrics port", func(c *Config) { c.Observability.MetricsPort = "" }},
		{"metrics port collides", func(c *Config) { c.Observability.MetricsPort = c.Server.Port }},
		{"non-positive resource cap", func(c *Config) { c.AccessControl.MaximumResourcesPerOrganization = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"ERROR", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
		{"", observability.InfoLevel},
	}
	for _, tt := range tests {
		cfg := &Config{Observability: ObservabilityConfig{LogLevel: tt.level}}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
