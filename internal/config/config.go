package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage backend names accepted in configuration
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Duration accepts YAML values like "15s" or "5m". yaml.v3 has no native
// time.Duration support.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Editing  EditingConfig  `yaml:"editing"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the job store backend
type StorageConfig struct {
	Backend  string         `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection configuration, used when the
// postgres backend is selected
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
}

// ProviderConfig holds the editing provider client configuration. The API
// key is read from the SEEDREAM_API_KEY environment variable, never from the
// config file.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	PollInterval   Duration `yaml:"poll_interval"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// EditingConfig tunes the synthesized progress reporting
type EditingConfig struct {
	ProgressTick    Duration `yaml:"progress_tick"`
	ProgressStep    int           `yaml:"progress_step"`
	ProgressCeiling int           `yaml:"progress_ceiling"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres backend")
		}
		if c.Storage.Database.Port < MinPort || c.Storage.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Storage.Database.Port, MinPort, MaxPort)
		}
		if c.Storage.Database.Database == "" {
			return fmt.Errorf("database name is required for postgres backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be %q or %q)", c.Storage.Backend, BackendMemory, BackendPostgres)
	}

	if c.Editing.ProgressCeiling < 0 || c.Editing.ProgressCeiling > 100 {
		return fmt.Errorf("editing progress_ceiling must be between 0 and 100")
	}

	if c.Editing.ProgressStep < 0 {
		return fmt.Errorf("editing progress_step must not be negative")
	}

	return nil
}
