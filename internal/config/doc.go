// Package config handles configuration loading for coven-link.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Unset values get defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_LINK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/link.yaml
//  3. ~/.config/coven/link.yaml
//
// A path ending in .toml is parsed as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  token: "${COVEN_LINK_TOKEN}"
//
// # Configuration Sections
//
// Backend:
//
//	backend:
//	  addr: "agent.example.com:443"
//	  insecure: false
//	  token: "${COVEN_LINK_TOKEN}"
//	  compression: "gzip"
//	  headers:
//	    x-team: "infra"
//
// Connection timing:
//
//	connection:
//	  heartbeat_interval: "5s"
//	  exec_heartbeat_interval: "3s"
//	  max_retries: 5
//	  backoff_base: "1s"
//	  backoff_max: "30s"
//
// Sessions:
//
//	session:
//	  store: "sqlite"            # sqlite, redis, memory
//	  database_path: "/var/lib/coven/link.db"
//	  redis:
//	    addr: "localhost:6379"
//
// Tools, logging and metrics:
//
//	tools:
//	  working_dir: "."
//	  shell_timeout: "10m"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  addr: "127.0.0.1:9464"
//
// Tracing falls back to the OTEL_* environment variables for unset fields:
//
//	tracing:
//	  exporter: "otlp"   # none, stdout, otlp
//	  otlp_endpoint: "http://localhost:4318"
//	  otlp_headers:
//	    authorization: "Bearer ${OTLP_TOKEN}"
package config
