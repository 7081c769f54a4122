// Package config loads agentfs configuration from a YAML file with
// environment variable overrides for credentials and logging.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration: a set of named backends, a route
// table mapping virtual path prefixes to backend names, and the
// ambient settings.
type Config struct {
	Log         LogConfig `yaml:"log"`
	MetricsAddr string    `yaml:"metricsAddr,omitempty"`

	// Backends are constructed by name; Default names the backend that
	// receives every path not claimed by a route.
	Backends map[string]BackendSpec `yaml:"backends"`
	Default  string                 `yaml:"default"`
	Routes   map[string]string      `yaml:"routes,omitempty"` // prefix -> backend name
}

// LogConfig mirrors internal/logging.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BackendSpec selects and parameterizes one backend instance.
type BackendSpec struct {
	Type     string          `yaml:"type"` // "s3", "postgres", "memory"
	S3       S3Options       `yaml:"s3,omitempty"`
	Postgres PostgresOptions `yaml:"postgres,omitempty"`
}

// S3Options is the connection-parameter record for the object store.
type S3Options struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	Region      string `yaml:"region,omitempty"`
	AccessKey   string `yaml:"accessKey,omitempty"`
	SecretKey   string `yaml:"secretKey,omitempty"`
	UseSSL      bool   `yaml:"useSSL,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

// PostgresOptions is the connection-parameter record for the
// relational store.
type PostgresOptions struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port,omitempty"`
	Database    string `yaml:"database"`
	User        string `yaml:"user"`
	Password    string `yaml:"password,omitempty"`
	SSLMode     string `yaml:"sslMode,omitempty"`
	Table       string `yaml:"table,omitempty"`
	MinPoolSize int    `yaml:"minPoolSize,omitempty"`
	MaxPoolSize int    `yaml:"maxPoolSize,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills gaps from the environment: credentials are commonly
// injected rather than committed to config files.
func (c *Config) applyEnv() {
	c.Log.Level = envOr("AGENTFS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("AGENTFS_LOG_FORMAT", c.Log.Format)
	c.MetricsAddr = envOr("AGENTFS_METRICS_ADDR", c.MetricsAddr)

	for name, spec := range c.Backends {
		switch spec.Type {
		case "s3":
			if spec.S3.AccessKey == "" {
				spec.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
			}
			if spec.S3.SecretKey == "" {
				spec.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
			}
			if spec.S3.Endpoint == "" {
				spec.S3.Endpoint = os.Getenv("S3_ENDPOINT")
			}
		case "postgres":
			if spec.Postgres.Password == "" {
				spec.Postgres.Password = os.Getenv("PGPASSWORD")
			}
			if spec.Postgres.Host == "" {
				spec.Postgres.Host = envOr("PGHOST", "localhost")
			}
			if spec.Postgres.Port == 0 {
				spec.Postgres.Port = envInt("PGPORT", 0)
			}
		}
		c.Backends[name] = spec
	}
}

// Validate checks structural consistency: every route must name a
// configured backend and the default must exist.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("config: no backends defined")
	}
	if c.Default == "" {
		return fmt.Errorf("config: default backend is required")
	}
	if _, ok := c.Backends[c.Default]; !ok {
		return fmt.Errorf("config: default backend %q is not defined", c.Default)
	}
	for prefix, name := range c.Routes {
		if _, ok := c.Backends[name]; !ok {
			return fmt.Errorf("config: route %q references undefined backend %q", prefix, name)
		}
	}
	for name, spec := range c.Backends {
		switch spec.Type {
		case "s3":
			if spec.S3.Bucket == "" {
				return fmt.Errorf("config: backend %q: s3 bucket is required", name)
			}
		case "postgres":
			if spec.Postgres.Database == "" || spec.Postgres.User == "" {
				return fmt.Errorf("config: backend %q: postgres database and user are required", name)
			}
		case "memory":
		default:
			return fmt.Errorf("config: backend %q: unknown type %q", name, spec.Type)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
