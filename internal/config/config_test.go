// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, overrides, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/posible/posible-admin/internal/tenant"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "console.yaml", `
server:
  http_addr: "127.0.0.1:8090"

backend:
  base_url: "http://localhost:5000"
  timeout: "10s"

tenant:
  mode: "permissive"
  fallback_db_name: "demo"
  fallback_twilio_number: "+15550000000"

sessions:
  idle_timeout: "1h"
  cleanup_interval: "5m"
  recheck_interval: "2m"
  secure_cookies: true

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8090")
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, "http://localhost:5000")
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, 10*time.Second)
	}
	if cfg.Sessions.IdleTimeout != time.Hour {
		t.Errorf("Sessions.IdleTimeout = %v, want %v", cfg.Sessions.IdleTimeout, time.Hour)
	}
	if cfg.Sessions.CleanupInterval != 5*time.Minute {
		t.Errorf("Sessions.CleanupInterval = %v, want %v", cfg.Sessions.CleanupInterval, 5*time.Minute)
	}
	if cfg.Sessions.RecheckInterval != 2*time.Minute {
		t.Errorf("Sessions.RecheckInterval = %v, want %v", cfg.Sessions.RecheckInterval, 2*time.Minute)
	}
	if !cfg.Sessions.SecureCookies {
		t.Error("Sessions.SecureCookies = false, want true")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v, want enabled at %s", cfg.Metrics, DefaultMetricsPath)
	}

	policy, err := cfg.Tenant.Policy()
	if err != nil {
		t.Fatalf("Tenant.Policy() error = %v", err)
	}
	want := tenant.Policy{Mode: tenant.Permissive, FallbackDBName: "demo", FallbackTwilioNumber: "+15550000000"}
	if policy != want {
		t.Errorf("Tenant.Policy() = %+v, want %+v", policy, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "console.yaml", `
server:
  http_addr: ":8090"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != DefaultBackendURL {
		t.Errorf("Backend.BaseURL = %q, want default", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != DefaultBackendTimeout {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, DefaultBackendTimeout)
	}
	if cfg.Sessions.IdleTimeout != DefaultIdleTimeout || cfg.Sessions.CleanupInterval != DefaultCleanupInterval {
		t.Errorf("Sessions = %+v, want defaults", cfg.Sessions)
	}
	policy, _ := cfg.Tenant.Policy()
	if policy.Mode != tenant.Strict {
		t.Errorf("tenant mode = %q, want strict", policy.Mode)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_POSIBLE_BACKEND", "https://backend.example.com")
	t.Setenv("TEST_TS_AUTHKEY", "tskey-123")

	configPath := writeConfig(t, "console.yaml", `
backend:
  base_url: "${TEST_POSIBLE_BACKEND}"
tailscale:
  enabled: true
  hostname: "posible-console"
  auth_key: "${TEST_TS_AUTHKEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != "https://backend.example.com" {
		t.Errorf("Backend.BaseURL = %q, want expanded value", cfg.Backend.BaseURL)
	}
	if cfg.Tailscale.AuthKey != "tskey-123" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-123")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSIBLE_BACKEND_URL", "http://override:9000")
	t.Setenv("POSIBLE_TENANT_MODE", "permissive")
	t.Setenv("POSIBLE_FALLBACK_DB_NAME", "from-env")
	t.Setenv("POSIBLE_HTTP_ADDR", ":9999")
	t.Setenv("POSIBLE_BACKEND_TIMEOUT", "3s")

	configPath := writeConfig(t, "console.yaml", `
server:
  http_addr: ":8090"
backend:
  base_url: "http://file:5000"
tenant:
  mode: "strict"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("Backend.BaseURL = %q, want env override", cfg.Backend.BaseURL)
	}
	if cfg.Server.HTTPAddr != ":9999" {
		t.Errorf("Server.HTTPAddr = %q, want env override", cfg.Server.HTTPAddr)
	}
	if cfg.Backend.Timeout != 3*time.Second {
		t.Errorf("Backend.Timeout = %v, want 3s", cfg.Backend.Timeout)
	}
	if cfg.Tenant.Mode != "permissive" || cfg.Tenant.FallbackDBName != "from-env" {
		t.Errorf("Tenant = %+v, want env overrides", cfg.Tenant)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/console.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "console.yaml", "server:\n  http_addr: [unclosed\n")

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "console.yaml", `
server:
  http_addr: ":8090"
sessions:
  idle_timeout: "forever"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "idle_timeout") {
		t.Errorf("error %q should name the field", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{HTTPAddr: ":8090"},
			Backend:  BackendConfig{BaseURL: "http://localhost:5000", Timeout: time.Second},
			Sessions: SessionsConfig{IdleTimeout: time.Hour, CleanupInterval: time.Minute, RecheckInterval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "posible"}
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"missing backend", func(c *Config) { c.Backend.BaseURL = "" }, "backend.base_url is required"},
		{"backend scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }, "http or https"},
		{"bad tenant mode", func(c *Config) { c.Tenant.Mode = "loose" }, "tenant.mode"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero cleanup", func(c *Config) { c.Sessions.CleanupInterval = 0 }, "sessions"},
		{"zero recheck", func(c *Config) { c.Sessions.RecheckInterval = 0 }, "sessions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_A", "alpha")

	tests := []struct {
		in, want string
	}{
		{"${TEST_VAR_A}", "alpha"},
		{"pre-${TEST_VAR_A}-post", "pre-alpha-post"},
		{"${TEST_VAR_UNSET_XYZ}", ""},
		{"no vars", "no vars"},
		{"$TEST_VAR_A", "$TEST_VAR_A"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadCLI_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadCLI(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadCLI() error = %v", err)
	}
	if cfg.Backend.BaseURL != DefaultBackendURL {
		t.Errorf("Backend.BaseURL = %q, want default", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != DefaultBackendTimeout {
		t.Errorf("Backend.Timeout = %v, want default", cfg.Backend.Timeout)
	}
	if cfg.Session.CookieDB == "" {
		t.Error("Session.CookieDB is empty, want a default path")
	}
}

func TestLoadCLI_TOML(t *testing.T) {
	t.Setenv("TEST_COOKIE_DIR", "/tmp/posible-test")
	t.Setenv("POSIBLE_LOG_LEVEL", "debug")

	path := writeConfig(t, "admin.toml", `
[backend]
base_url = "http://localhost:5000"
timeout = "5s"

[tenant]
mode = "permissive"
fallback_twilio_number = "+15551112222"

[session]
cookie_db = "${TEST_COOKIE_DIR}/cookies.db"
`)

	cfg, err := LoadCLI(path)
	if err != nil {
		t.Fatalf("LoadCLI() error = %v", err)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("Backend.Timeout = %v, want 5s", cfg.Backend.Timeout)
	}
	if cfg.Session.CookieDB != "/tmp/posible-test/cookies.db" {
		t.Errorf("Session.CookieDB = %q, want expanded path", cfg.Session.CookieDB)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want env override", cfg.Logging.Level)
	}
	if cfg.Tenant.FallbackTwilioNumber != "+15551112222" {
		t.Errorf("Tenant.FallbackTwilioNumber = %q", cfg.Tenant.FallbackTwilioNumber)
	}
}

func TestLoadCLI_Invalid(t *testing.T) {
	path := writeConfig(t, "admin.toml", "[tenant]\nmode = \"sometimes\"\n")
	if _, err := LoadCLI(path); err == nil {
		t.Error("LoadCLI() expected error for bad tenant mode, got nil")
	}

	path = writeConfig(t, "admin.toml", "[backend\n")
	if _, err := LoadCLI(path); err == nil {
		t.Error("LoadCLI() expected error for invalid TOML, got nil")
	}
}

func TestDefaultCLIPath(t *testing.T) {
	t.Setenv("POSIBLE_CONFIG", "/etc/posible/admin.toml")
	if got := DefaultCLIPath(); got != "/etc/posible/admin.toml" {
		t.Errorf("DefaultCLIPath() = %q, want env value", got)
	}
}
