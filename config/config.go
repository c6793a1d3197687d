// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Env      string         `yaml:"env"` // "development" or "production"
	DataDir  string         `yaml:"data_dir"`
	Schema   SchemaConfig   `yaml:"schema"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	OpenAPI  OpenAPIConfig  `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SchemaConfig locates the shared schema document.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig configures the relational store behind the data-access
// handle.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (only supported driver)
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures bearer-token verification. Token issuance is an
// external collaborator; only the signing secret is needed here.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ToolsConfig configures the external migration/generation toolchain.
// Each command is argv-style; "{schema}" in the generate command is replaced
// with the transient schema copy's path.
type ToolsConfig struct {
	Apply            []string      `yaml:"apply"`
	ApplyDestructive []string      `yaml:"apply_destructive"`
	Generate         []string      `yaml:"generate"`
	Timeout          time.Duration `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures the runtime OpenAPI endpoint.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModelsDir returns the directory holding entity definition files.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// BuildsDir returns the directory holding generated data-access artifacts.
func (c *Config) BuildsDir() string {
	return filepath.Join(c.DataDir, "builds")
}

// Production reports whether the server runs in production mode. Internal
// error detail is suppressed from responses in production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SQLDriver maps the configured driver name to the database/sql driver name.
func (c *Config) SQLDriver() string {
	if c.Database.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Database.Driver
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables,
// for container deployments without a config file.
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falling back to environment
// variables, falling back to pure defaults.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies SCHEMASMITH_* environment variables. Environment
// always wins over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCHEMASMITH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCHEMASMITH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCHEMASMITH_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("SCHEMASMITH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SCHEMASMITH_SCHEMA_PATH"); v != "" {
		cfg.Schema.Path = v
	}
	if v := os.Getenv("SCHEMASMITH_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SCHEMASMITH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SCHEMASMITH_TOOLS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tools.Timeout = d
		}
	}
	if v := os.Getenv("SCHEMASMITH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCHEMASMITH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SCHEMASMITH_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// setDefaults fills zero values with defaults.
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Schema.Path == "" {
		cfg.Schema.Path = filepath.Join("schema", "app.schema")
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(cfg.DataDir, "app.db")
	}
	if len(cfg.Tools.Apply) == 0 {
		cfg.Tools.Apply = []string{"smith-migrate", "push", "--schema", cfg.Schema.Path}
	}
	if len(cfg.Tools.ApplyDestructive) == 0 {
		cfg.Tools.ApplyDestructive = append(append([]string{}, cfg.Tools.Apply...), "--accept-data-loss")
	}
	if len(cfg.Tools.Generate) == 0 {
		cfg.Tools.Generate = []string{"smith-migrate", "generate", "--schema", "{schema}"}
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = 2 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate checks configuration for errors.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("database.driver %q unsupported (only sqlite)", cfg.Database.Driver))
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q invalid", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q invalid", cfg.Logging.Format))
	}
	if cfg.Tools.Timeout < time.Second {
		errs = append(errs, "tools.timeout must be at least 1s")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
