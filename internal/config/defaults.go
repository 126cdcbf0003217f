package config

import "time"

// Default values.
const (
	DefaultLogLevel     = "info"
	DefaultFrequencyHz  = 100
	DefaultWriteTimeout = 5 * time.Second
	DefaultAddr         = "127.0.0.1:8080"
	DefaultDuckDBFile   = "coral-collect.duckdb"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Pretty: true,
		},
		Profiler: ProfilerConfig{
			FrequencyHz: DefaultFrequencyHz,
		},
		Storage: StorageConfig{
			Driver:       DriverDuckDB,
			DSN:          DefaultDuckDBFile,
			WriteTimeout: DefaultWriteTimeout,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
	}
}
