// ABOUTME: Configuration for the posible-admin CLI
// ABOUTME: Loads TOML from the XDG config path with env expansion; a missing file means defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// CLIConfig is the posible-admin configuration.
type CLIConfig struct {
	Backend BackendConfig `toml:"backend"`
	Tenant  TenantConfig  `toml:"tenant"`
	Logging LoggingConfig `toml:"logging"`
	Session CLISession    `toml:"session"`
}

// CLISession locates the persistent cookie store.
type CLISession struct {
	CookieDB string `toml:"cookie_db"`
}

// DefaultCLIPath returns $POSIBLE_CONFIG, or admin.toml under the user
// config directory.
func DefaultCLIPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "admin.toml"
	}
	return filepath.Join(dir, "posible", "admin.toml")
}

func defaultCookieDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cookies.db"
	}
	return filepath.Join(dir, "posible", "cookies.db")
}

// LoadCLI reads the CLI config at path. A missing file yields the defaults.
func LoadCLI(path string) (*CLIConfig, error) {
	cfg := CLIConfig{
		Backend: BackendConfig{BaseURL: DefaultBackendURL},
		Logging: LoggingConfig{Level: "warn", Format: "text"},
		Session: CLISession{CookieDB: defaultCookieDB()},
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	ov, err := loadOverrides()
	if err != nil {
		return nil, err
	}
	ov.applyShared(&cfg.Backend, &cfg.Tenant, &cfg.Logging)
	set(&cfg.Session.CookieDB, ov.CookieDB)

	if cfg.Backend.Timeout, err = parseDuration("backend.timeout", cfg.Backend.TimeoutRaw, DefaultBackendTimeout); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the CLI config.
func (c *CLIConfig) Validate() error {
	if err := validateBackend(c.Backend); err != nil {
		return err
	}
	if _, err := c.Tenant.Policy(); err != nil {
		return fmt.Errorf("tenant.mode: %w", err)
	}
	if c.Session.CookieDB == "" {
		return fmt.Errorf("session.cookie_db is required")
	}
	return validateLogging(c.Logging)
}
