// ABOUTME: Configuration loading and parsing for coven-link
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-link configuration
type Config struct {
	Backend    BackendConfig    `yaml:"backend" toml:"backend"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	Tools      ToolsConfig      `yaml:"tools" toml:"tools"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing" toml:"tracing"`
}

// BackendConfig describes the agent backend to connect to
type BackendConfig struct {
	Addr          string            `yaml:"addr" toml:"addr"`
	Insecure      bool              `yaml:"insecure" toml:"insecure"`
	Token         string            `yaml:"token" toml:"token"`
	Compression   string            `yaml:"compression" toml:"compression"` // "" or "gzip"
	ClientType    string            `yaml:"client_type" toml:"client_type"`
	ClientVersion string            `yaml:"client_version" toml:"client_version"`
	Headers       map[string]string `yaml:"headers" toml:"headers"`
}

// ConnectionConfig holds heartbeat and retry timing
type ConnectionConfig struct {
	HeartbeatInterval     time.Duration `yaml:"-" toml:"-"`
	ExecHeartbeatInterval time.Duration `yaml:"-" toml:"-"`
	BackoffBase           time.Duration `yaml:"-" toml:"-"`
	BackoffMax            time.Duration `yaml:"-" toml:"-"`
	MaxRetries            int           `yaml:"max_retries" toml:"max_retries"`

	// Raw string values for unmarshaling
	HeartbeatIntervalRaw     string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	ExecHeartbeatIntervalRaw string `yaml:"exec_heartbeat_interval" toml:"exec_heartbeat_interval"`
	BackoffBaseRaw           string `yaml:"backoff_base" toml:"backoff_base"`
	BackoffMaxRaw            string `yaml:"backoff_max" toml:"backoff_max"`
}

// SessionConfig selects where session blobs and metadata are kept
type SessionConfig struct {
	Store        string      `yaml:"store" toml:"store"` // sqlite, redis, memory
	DatabasePath string      `yaml:"database_path" toml:"database_path"`
	Redis        RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis session store
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// ToolsConfig configures the local tool executors
type ToolsConfig struct {
	WorkingDir      string        `yaml:"working_dir" toml:"working_dir"`
	ShellTimeout    time.Duration `yaml:"-" toml:"-"`
	ShellTimeoutRaw string        `yaml:"shell_timeout" toml:"shell_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// TracingConfig selects the OpenTelemetry trace exporter.
// Unset fields fall back to OTEL_TRACES_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT,
// OTEL_EXPORTER_OTLP_HEADERS and OTEL_SERVICE_NAME.
type TracingConfig struct {
	Exporter     string            `yaml:"exporter" toml:"exporter"` // none, stdout, otlp
	OTLPEndpoint string            `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	OTLPHeaders  map[string]string `yaml:"otlp_headers" toml:"otlp_headers"`
	ServiceName  string            `yaml:"service_name" toml:"service_name"`
}

// Defaults
const (
	DefaultHeartbeatInterval     = 5 * time.Second
	DefaultExecHeartbeatInterval = 3 * time.Second
	DefaultMaxRetries            = 5
	DefaultBackoffBase           = time.Second
	DefaultBackoffMax            = 30 * time.Second
	DefaultShellTimeout          = 10 * time.Minute
	DefaultClientType            = "cli"
	DefaultMetricsAddr           = "127.0.0.1:9464"
	DefaultMetricsPath           = "/metrics"
	DefaultServiceName           = "coven-link"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return Parse(data, format)
}

// Parse parses configuration content in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "yaml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills every unset field with its default
func (c *Config) applyDefaults() {
	if c.Backend.ClientType == "" {
		c.Backend.ClientType = DefaultClientType
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.ExecHeartbeatInterval == 0 {
		c.Connection.ExecHeartbeatInterval = DefaultExecHeartbeatInterval
	}
	if c.Connection.MaxRetries == 0 {
		c.Connection.MaxRetries = DefaultMaxRetries
	}
	if c.Connection.BackoffBase == 0 {
		c.Connection.BackoffBase = DefaultBackoffBase
	}
	if c.Connection.BackoffMax == 0 {
		c.Connection.BackoffMax = DefaultBackoffMax
	}
	if c.Session.Store == "" {
		c.Session.Store = "sqlite"
	}
	if c.Session.Store == "sqlite" && c.Session.DatabasePath == "" {
		c.Session.DatabasePath = filepath.Join(DataPath(), "link.db")
	}
	if c.Tools.ShellTimeout == 0 {
		c.Tools.ShellTimeout = DefaultShellTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = os.Getenv("OTEL_TRACES_EXPORTER")
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if len(c.Tracing.OTLPHeaders) == 0 {
		c.Tracing.OTLPHeaders = parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = os.Getenv("OTEL_SERVICE_NAME")
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
}

// parseHeaders reads the "key1=value1,key2=value2" form of OTEL_EXPORTER_OTLP_HEADERS.
func parseHeaders(s string) map[string]string {
	if s == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Backend.Addr == "" {
		return fmt.Errorf("backend.addr is required")
	}

	switch c.Backend.Compression {
	case "", "gzip":
	default:
		return fmt.Errorf("backend.compression must be empty or gzip, got %q", c.Backend.Compression)
	}

	if c.Connection.MaxRetries < 0 {
		return fmt.Errorf("connection.max_retries must not be negative")
	}
	if c.Connection.HeartbeatInterval < 0 || c.Connection.ExecHeartbeatInterval < 0 {
		return fmt.Errorf("connection heartbeat intervals must be positive")
	}
	if c.Connection.BackoffBase < 0 || c.Connection.BackoffMax < c.Connection.BackoffBase {
		return fmt.Errorf("connection.backoff_max must be at least connection.backoff_base")
	}

	switch c.Session.Store {
	case "sqlite":
		if c.Session.DatabasePath == "" {
			return fmt.Errorf("session.database_path is required for the sqlite store")
		}
	case "redis":
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required for the redis store")
		}
	case "memory":
	default:
		return fmt.Errorf("session.store must be sqlite, redis or memory, got %q", c.Session.Store)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %q", c.Tracing.Exporter)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"heartbeat_interval", cfg.Connection.HeartbeatIntervalRaw, &cfg.Connection.HeartbeatInterval},
		{"exec_heartbeat_interval", cfg.Connection.ExecHeartbeatIntervalRaw, &cfg.Connection.ExecHeartbeatInterval},
		{"backoff_base", cfg.Connection.BackoffBaseRaw, &cfg.Connection.BackoffBase},
		{"backoff_max", cfg.Connection.BackoffMaxRaw, &cfg.Connection.BackoffMax},
		{"shell_timeout", cfg.Tools.ShellTimeoutRaw, &cfg.Tools.ShellTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// Path returns the path to the coven-link config file.
// Priority: COVEN_LINK_CONFIG env var > XDG_CONFIG_HOME/coven/link.yaml > ~/.config/coven/link.yaml
func Path() string {
	if envPath := os.Getenv("COVEN_LINK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "link.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "link.yaml")
}

// DataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}
