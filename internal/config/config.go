// ABOUTME: Configuration loading and parsing for posible-console
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/posible/posible-admin/internal/tenant"
)

// DefaultBackendURL is the hosted Posible backend.
const DefaultBackendURL = "https://posible.pythonanywhere.com"

// Defaults applied before a file is decoded.
const (
	DefaultBackendTimeout  = 30 * time.Second
	DefaultIdleTimeout     = 12 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultRecheckInterval = 5 * time.Minute
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete posible-console configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Backend   BackendConfig   `yaml:"backend"`
	Tenant    TenantConfig    `yaml:"tenant"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	CertFile  string `yaml:"cert_file"` // TLS cert file (generate via: tailscale cert <hostname>)
	KeyFile   string `yaml:"key_file"`
}

// BackendConfig locates the Posible backend API
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// TenantConfig selects strict or permissive tenant resolution for the
// whole deployment
type TenantConfig struct {
	Mode                 string `yaml:"mode" toml:"mode"`
	FallbackDBName       string `yaml:"fallback_db_name" toml:"fallback_db_name"`
	FallbackTwilioNumber string `yaml:"fallback_twilio_number" toml:"fallback_twilio_number"`
}

// Policy converts the section into a tenant.Policy.
func (t TenantConfig) Policy() (tenant.Policy, error) {
	mode, err := tenant.ParseMode(t.Mode)
	if err != nil {
		return tenant.Policy{}, err
	}
	return tenant.Policy{
		Mode:                 mode,
		FallbackDBName:       t.FallbackDBName,
		FallbackTwilioNumber: t.FallbackTwilioNumber,
	}, nil
}

// SessionsConfig controls the per-browser console sessions
type SessionsConfig struct {
	IdleTimeout     time.Duration `yaml:"-"`
	CleanupInterval time.Duration `yaml:"-"`
	// RecheckInterval is how long a confirmed backend session is trusted
	RecheckInterval time.Duration `yaml:"-"`
	// SecureCookies forces the Secure flag even when TLS terminates upstream
	SecureCookies bool `yaml:"secure_cookies"`

	IdleTimeoutRaw     string `yaml:"idle_timeout"`
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
	RecheckIntervalRaw string `yaml:"recheck_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, then
// POSIBLE_* overrides are applied. Duration strings are parsed into
// time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Config{
		Backend: BackendConfig{BaseURL: DefaultBackendURL},
		Metrics: MetricsConfig{Path: DefaultMetricsPath},
	}
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	ov, err := loadOverrides()
	if err != nil {
		return nil, err
	}
	ov.applyServer(&cfg)
	ov.applyShared(&cfg.Backend, &cfg.Tenant, &cfg.Logging)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if err := validateBackend(c.Backend); err != nil {
		return err
	}

	if _, err := c.Tenant.Policy(); err != nil {
		return fmt.Errorf("tenant.mode: %w", err)
	}

	if err := validateLogging(c.Logging); err != nil {
		return err
	}

	if c.Sessions.CleanupInterval <= 0 || c.Sessions.IdleTimeout <= 0 || c.Sessions.RecheckInterval <= 0 {
		return fmt.Errorf("sessions durations must be positive")
	}

	return nil
}

func validateBackend(b BackendConfig) error {
	if b.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https scheme")
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	switch l.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", l.Level)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Backend.Timeout, err = parseDuration("backend.timeout", cfg.Backend.TimeoutRaw, DefaultBackendTimeout); err != nil {
		return err
	}
	if cfg.Sessions.IdleTimeout, err = parseDuration("sessions.idle_timeout", cfg.Sessions.IdleTimeoutRaw, DefaultIdleTimeout); err != nil {
		return err
	}
	if cfg.Sessions.CleanupInterval, err = parseDuration("sessions.cleanup_interval", cfg.Sessions.CleanupIntervalRaw, DefaultCleanupInterval); err != nil {
		return err
	}
	if cfg.Sessions.RecheckInterval, err = parseDuration("sessions.recheck_interval", cfg.Sessions.RecheckIntervalRaw, DefaultRecheckInterval); err != nil {
		return err
	}

	return nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, raw, err)
	}
	return d, nil
}
