// Package config handles configuration management with validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure shared by both
// service binaries. Each binary only reads the sections relevant to it.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	System     SystemConfig     `yaml:"system"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Pipe       PipeConfig       `yaml:"pipe"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DatabaseConfig describes how to reach the relational store backing the
// ticker, parameter, and price tables.
type DatabaseConfig struct {
	ConnInfo string `yaml:"conn_info"` // raw connection string; wins over the fields below if set
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password Secret `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

// DSN composes a libpq-style connection string from the discrete fields
// when ConnInfo is not set directly.
func (d DatabaseConfig) DSN() string {
	if d.ConnInfo != "" {
		return d.ConnInfo
	}

	var b strings.Builder
	if d.Host != "" {
		fmt.Fprintf(&b, "host=%s ", d.Host)
	}
	if d.Port != 0 {
		fmt.Fprintf(&b, "port=%d ", d.Port)
	}
	if d.User != "" {
		fmt.Fprintf(&b, "user=%s ", d.User)
	}
	if d.Password != "" {
		fmt.Fprintf(&b, "password=%s ", string(d.Password))
	}
	if d.DBName != "" {
		fmt.Fprintf(&b, "dbname=%s ", d.DBName)
	}
	return strings.TrimSpace(b.String())
}

// HasRequiredParams reports whether enough information was supplied to
// attempt a connection at all.
func (d DatabaseConfig) HasRequiredParams() bool {
	if d.ConnInfo != "" {
		return true
	}
	return d.Host != "" && d.User != "" && d.DBName != ""
}

// SystemConfig contains ambient system settings shared by both binaries.
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// MarketDataConfig configures Stage A, the market-data service.
type MarketDataConfig struct {
	TestMode              bool `yaml:"test_mode"`
	PollIntervalMs        int  `yaml:"poll_interval_ms" validate:"min=1"`
	TickerReloadIntervalS int  `yaml:"ticker_reload_interval_s" validate:"min=1"`
}

// PricingConfig configures Stage B, the pricing service.
type PricingConfig struct {
	NumWorkers           int `yaml:"num_workers" validate:"min=0"`
	ParamsReloadIntervalS int `yaml:"params_reload_interval_s" validate:"min=1"`
}

// PipeConfig describes the named pipe used as IPC between the two stages.
type PipeConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig contains telemetry export settings.
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment
// variable expansion.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration,
// aggregating every failure rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateSystemConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateMarketDataConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validatePricingConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateMarketDataConfig() error {
	if c.MarketData.PollIntervalMs < 0 {
		return ValidationError{
			Field:   "market_data.poll_interval_ms",
			Value:   c.MarketData.PollIntervalMs,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validatePricingConfig() error {
	if c.Pricing.NumWorkers < 0 {
		return ValidationError{
			Field:   "pricing.num_workers",
			Value:   c.Pricing.NumWorkers,
			Message: "must not be negative",
		}
	}
	return nil
}

// String returns a string representation of the configuration with
// credentials masked (Secret fields redact themselves during marshaling).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration, used as a base in tests
// and as the fallback when no --config file is given.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:   "localhost",
			Port:   5432,
			User:   "postgres",
			DBName: "pricing",
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		MarketData: MarketDataConfig{
			TestMode:              false,
			PollIntervalMs:        500,
			TickerReloadIntervalS: 5,
		},
		Pricing: PricingConfig{
			NumWorkers:            0,
			ParamsReloadIntervalS: 5,
		},
		Pipe: PipeConfig{
			Path: "/tmp/pricing_pipe",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9100,
			EnableMetrics: true,
		},
	}
}
