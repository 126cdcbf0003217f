// Package config provides configuration loading for coral-collect.
package config

import "time"

// Config is the coral-collect configuration file.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Sampling SamplingConfig `yaml:"sampling"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CORAL_COLLECT_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"CORAL_COLLECT_LOG_PRETTY"`
}

// ProfilerConfig configures the CPU profiler toggle.
type ProfilerConfig struct {
	FrequencyHz int `yaml:"frequency_hz" env:"CORAL_COLLECT_PROFILER_HZ"`
}

// SamplingConfig configures the fixed start decision.
type SamplingConfig struct {
	// Profile makes every session a full profile instead of a measurement.
	Profile bool `yaml:"profile" env:"CORAL_COLLECT_PROFILE"`
}

// StorageConfig selects and configures the sink.
type StorageConfig struct {
	// Driver is "duckdb" or "log".
	Driver string `yaml:"driver" env:"CORAL_COLLECT_STORAGE_DRIVER"`
	// DSN is the DuckDB database path; empty means in-memory.
	DSN          string        `yaml:"dsn" env:"CORAL_COLLECT_STORAGE_DSN"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"CORAL_COLLECT_WRITE_TIMEOUT"`
}

// ServerConfig configures the demo HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"CORAL_COLLECT_ADDR"`
}

// Storage drivers.
const (
	DriverDuckDB = "duckdb"
	DriverLog    = "log"
)
