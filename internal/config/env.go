// ABOUTME: POSIBLE_* environment overrides shared by the console and CLI configs
// ABOUTME: Processed with envconfig after the file is decoded

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every override variable.
const EnvPrefix = "POSIBLE"

// overrides holds the environment values that take precedence over a file.
// Unset variables leave the file value alone.
type overrides struct {
	BackendURL           string `envconfig:"BACKEND_URL"`
	BackendTimeout       string `envconfig:"BACKEND_TIMEOUT"`
	HTTPAddr             string `envconfig:"HTTP_ADDR"`
	TenantMode           string `envconfig:"TENANT_MODE"`
	FallbackDBName       string `envconfig:"FALLBACK_DB_NAME"`
	FallbackTwilioNumber string `envconfig:"FALLBACK_TWILIO_NUMBER"`
	LogLevel             string `envconfig:"LOG_LEVEL"`
	LogFormat            string `envconfig:"LOG_FORMAT"`
	CookieDB             string `envconfig:"COOKIE_DB"`
}

func loadOverrides() (overrides, error) {
	var o overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return o, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}
	return o, nil
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (o overrides) applyShared(b *BackendConfig, t *TenantConfig, l *LoggingConfig) {
	set(&b.BaseURL, o.BackendURL)
	set(&b.TimeoutRaw, o.BackendTimeout)
	set(&t.Mode, o.TenantMode)
	set(&t.FallbackDBName, o.FallbackDBName)
	set(&t.FallbackTwilioNumber, o.FallbackTwilioNumber)
	set(&l.Level, o.LogLevel)
	set(&l.Format, o.LogFormat)
}

func (o overrides) applyServer(c *Config) {
	set(&c.Server.HTTPAddr, o.HTTPAddr)
}
