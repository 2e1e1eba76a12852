// Package config handles configuration loading for posible-console and
// posible-admin.
//
// # Overview
//
// The web console reads YAML; the CLI reads TOML. Both expand ${VAR}
// references in the raw file, then apply POSIBLE_* environment overrides,
// then parse durations and validate.
//
// # Console Configuration File
//
//	server:
//	  http_addr: "127.0.0.1:8090"
//
//	backend:
//	  base_url: "https://posible.pythonanywhere.com"
//	  timeout: "30s"
//
//	tenant:
//	  mode: "strict"                 # strict, permissive
//	  fallback_db_name: ""           # permissive only
//	  fallback_twilio_number: ""     # permissive only
//
//	sessions:
//	  idle_timeout: "12h"
//	  cleanup_interval: "10m"
//	  secure_cookies: false
//
//	tailscale:
//	  enabled: false
//	  hostname: "posible-console"
//	  auth_key: "${TS_AUTHKEY}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # CLI Configuration File
//
// Default location is $POSIBLE_CONFIG, else posible/admin.toml under the
// user config directory. A missing file means defaults.
//
//	[backend]
//	base_url = "https://posible.pythonanywhere.com"
//	timeout = "30s"
//
//	[tenant]
//	mode = "strict"
//
//	[session]
//	cookie_db = "/home/me/.config/posible/cookies.db"
//
// # Environment Overrides
//
//   - POSIBLE_BACKEND_URL, POSIBLE_BACKEND_TIMEOUT
//   - POSIBLE_HTTP_ADDR (console)
//   - POSIBLE_TENANT_MODE, POSIBLE_FALLBACK_DB_NAME, POSIBLE_FALLBACK_TWILIO_NUMBER
//   - POSIBLE_LOG_LEVEL, POSIBLE_LOG_FORMAT
//   - POSIBLE_COOKIE_DB (CLI)
//
// # Usage
//
//	cfg, err := config.Load("/etc/posible/console.yaml")
//	policy, err := cfg.Tenant.Policy()
package config
