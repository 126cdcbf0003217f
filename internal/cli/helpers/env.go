package helpers

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/config"
	"github.com/coral-mesh/coral-collect/internal/duckdb"
	errs "github.com/coral-mesh/coral-collect/internal/errors"
	"github.com/coral-mesh/coral-collect/internal/logging"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/profiler"
	"github.com/coral-mesh/coral-collect/pkg/sink/duckdbsink"
	"github.com/coral-mesh/coral-collect/pkg/sink/logsink"
)

// Env is the resolved configuration and logger of one command invocation.
type Env struct {
	Config *config.Config
	Logger zerolog.Logger
}

// LoadEnv loads the configuration selected by the global flags and builds
// the process logger.
func LoadEnv(cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load(config.ResolvePath(flagValue(cmd, FlagConfig)))
	if err != nil {
		return nil, err
	}

	if level := flagValue(cmd, FlagLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Pretty = logCfg.Pretty && cfg.Logging.Pretty
	logCfg.Output = cmd.ErrOrStderr()

	return &Env{
		Config: cfg,
		Logger: logging.New(logCfg),
	}, nil
}

// NewProfiler creates the CPU toggle configured for this invocation.
func (e *Env) NewProfiler() *profiler.CPUToggle {
	return profiler.NewCPUToggle(e.Logger, profiler.Config{
		FrequencyHz: e.Config.Profiler.FrequencyHz,
	})
}

// Decision returns the fixed start decision configured for this invocation.
func (e *Env) Decision() collector.StartDecision {
	return collector.Fixed(e.Config.Sampling.Profile)
}

// OpenBackend opens the configured storage driver. The returned function
// releases it.
func (e *Env) OpenBackend() (collector.Backend, func(), error) {
	switch e.Config.Storage.Driver {
	case config.DriverLog:
		return logsink.New(e.Logger), func() {}, nil
	case config.DriverDuckDB:
		return e.OpenSink()
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", e.Config.Storage.Driver)
	}
}

// OpenSink opens the DuckDB sink regardless of the configured driver.
func (e *Env) OpenSink() (*duckdbsink.Sink, func(), error) {
	db, err := duckdb.OpenDB(e.Config.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	release := func() { errs.DeferClose(e.Logger, db, "failed to close database") }

	s, err := duckdbsink.New(db, e.Logger, duckdbsink.Options{
		WriteTimeout: e.Config.Storage.WriteTimeout,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return s, release, nil
}
