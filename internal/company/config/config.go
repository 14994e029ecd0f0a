// Package config loads the dashboard configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DASHBOARD_HTTP_PORT.
const EnvPrefix = "DASHBOARD"

// DefaultPath is the config file used when none is given.
var DefaultPath = filepath.Join("internal", "company", "config", "config.yaml")

// Config struct for YAML configuration
type Config struct {
	Env            string        `yaml:"ENV" envconfig:"ENV"`
	GRPCPort       int           `yaml:"GRPC_PORT" envconfig:"GRPC_PORT"`
	HTTPPort       int           `yaml:"HTTP_PORT" envconfig:"HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"REQUEST_TIMEOUT" envconfig:"REQUEST_TIMEOUT"`
	RateLimit      int           `yaml:"RATE_LIMIT" envconfig:"RATE_LIMIT"`
	MaxUploadBytes int64         `yaml:"MAX_UPLOAD_BYTES" envconfig:"MAX_UPLOAD_BYTES"`

	BackendURL     string        `yaml:"BACKEND_URL" envconfig:"BACKEND_URL"`
	BackendTimeout time.Duration `yaml:"BACKEND_TIMEOUT" envconfig:"BACKEND_TIMEOUT"`

	JWTSecret string `yaml:"JWT_SECRET" envconfig:"JWT_SECRET"`
	Locale    string `yaml:"LOCALE" envconfig:"LOCALE"`

	SessionTTL    time.Duration `yaml:"SESSION_TTL" envconfig:"SESSION_TTL"`
	SweepInterval time.Duration `yaml:"SWEEP_INTERVAL" envconfig:"SWEEP_INTERVAL"`

	// KafkaBrokers empty disables event publishing and consuming.
	KafkaBrokers []string `yaml:"KAFKA_BROKERS" envconfig:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC" envconfig:"TOPIC"`
	GroupID      string   `yaml:"GROUP_ID" envconfig:"GROUP_ID"`
}

// Default returns the configuration used for anything the file and the
// environment leave unset.
func Default() Config {
	return Config{
		Env:            "development",
		GRPCPort:       50051,
		HTTPPort:       8080,
		RequestTimeout: 60 * time.Second,
		RateLimit:      120,
		MaxUploadBytes: 32 << 20,
		BackendURL:     "http://localhost:8000",
		BackendTimeout: 30 * time.Second,
		Locale:         "pt-BR",
		SessionTTL:     30 * time.Minute,
		SweepInterval:  time.Minute,
		Topic:          "empresas.eventos",
		GroupID:        "dashboard",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET must be provided")
	case c.BackendURL == "":
		return errors.New("BACKEND_URL must be provided")
	case c.HTTPPort <= 0 || c.GRPCPort <= 0:
		return fmt.Errorf("invalid ports: http=%d grpc=%d", c.HTTPPort, c.GRPCPort)
	case c.HTTPPort == c.GRPCPort:
		return fmt.Errorf("HTTP and gRPC ports must differ: %d", c.HTTPPort)
	case c.SessionTTL <= 0 || c.SweepInterval <= 0:
		return errors.New("SESSION_TTL and SWEEP_INTERVAL must be positive")
	case len(c.KafkaBrokers) > 0 && c.Topic == "":
		return errors.New("TOPIC must be provided when KAFKA_BROKERS is set")
	}
	return nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
