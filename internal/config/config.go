// Package config provides configuration management for gpusatgo.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/satcount/gpusatgo/internal/driver"
)

// Config holds all configuration for the gpusatgo CLI and service: the
// engine-facing SolveConfig fields (spec §6) plus the ambient sections
// used by the run-history store, trace artifact storage, and telemetry.
type Config struct {
	Solve     SolveConfig     `mapstructure:"solve"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// SolveConfig holds the engine-facing knobs named in spec §6.
type SolveConfig struct {
	Layout          string `mapstructure:"layout"` // auto, array, or tree
	Weighted        bool   `mapstructure:"weighted"`
	DoTrace         bool   `mapstructure:"trace"`
	MaxBag          int    `mapstructure:"max_bag"`
	MaxMemoryBuffer uint64 `mapstructure:"max_memory_buffer"`
}

// DriverConfig translates SolveConfig into the driver package's Config.
func (s SolveConfig) DriverConfig() driver.Config {
	cfg := driver.DefaultConfig()
	if s.Layout != "" {
		cfg.Layout = driver.Layout(s.Layout)
	}
	if s.MaxBag > 0 {
		cfg.MaxBag = s.MaxBag
	}
	cfg.MaxMemoryBuffer = s.MaxMemoryBuffer
	return cfg
}

// DatabaseConfig holds database connection configuration for the
// run-history store.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // postgres, mysql, or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration for uploaded trace
// artifacts.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// defaults when no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/gpusatgo")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GPUSATGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("solve.layout", "auto")
	v.SetDefault("solve.weighted", false)
	v.SetDefault("solve.max_bag", 40)
	v.SetDefault("solve.max_memory_buffer", 0)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./trace")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "gpusatgo")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "postgresql", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Database.Type != "sqlite" && c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	switch c.Solve.Layout {
	case "", "auto", "array", "tree":
	default:
		return fmt.Errorf("unsupported layout: %s", c.Solve.Layout)
	}

	return nil
}
