package config

import "fmt"

// Validate checks the configuration for values the collector cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverDuckDB, DriverLog:
	default:
		return fmt.Errorf("unknown storage driver %q (want %q or %q)", c.Storage.Driver, DriverDuckDB, DriverLog)
	}

	if c.Profiler.FrequencyHz <= 0 {
		return fmt.Errorf("profiler frequency must be positive, got %d", c.Profiler.FrequencyHz)
	}
	if c.Profiler.FrequencyHz > 1000 {
		return fmt.Errorf("profiler frequency cannot exceed 1000Hz, got %d", c.Profiler.FrequencyHz)
	}

	if c.Storage.WriteTimeout <= 0 {
		return fmt.Errorf("storage write timeout must be positive, got %s", c.Storage.WriteTimeout)
	}

	return nil
}
