package helpers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-collect/internal/config"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/sink/duckdbsink"
	"github.com/coral-mesh/coral-collect/pkg/sink/logsink"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddGlobalFlags(cmd.PersistentFlags())
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEnv_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\nsampling:\n  profile: true\n")

	env, err := LoadEnv(newCmd(t, "--config", path, "--log-level", "debug"))
	require.NoError(t, err)

	assert.Equal(t, "debug", env.Config.Logging.Level)
	assert.True(t, env.Config.Sampling.Profile)
	assert.True(t, env.Decision().ShouldProfile())
}

func TestLoadEnv_ConfigFromEnvironment(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: log\n")
	t.Setenv(config.EnvConfigPath, path)

	env, err := LoadEnv(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, config.DriverLog, env.Config.Storage.Driver)
}

func TestLoadEnv_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: redis\n")

	_, err := LoadEnv(newCmd(t, "--config", path))
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	env := &Env{Config: config.Default()}

	env.Config.Storage.Driver = config.DriverLog
	backend, release, err := env.OpenBackend()
	require.NoError(t, err)
	release()
	assert.IsType(t, &logsink.Sink{}, backend)

	env.Config.Storage.Driver = config.DriverDuckDB
	env.Config.Storage.DSN = ":memory:"
	backend, release, err = env.OpenBackend()
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &duckdbsink.Sink{}, backend)

	env.Config.Storage.Driver = "redis"
	_, _, err = env.OpenBackend()
	assert.Error(t, err)
}

func TestNewProfiler(t *testing.T) {
	env := &Env{Config: config.Default()}
	var _ collector.Profiler = env.NewProfiler()
	assert.False(t, env.NewProfiler().Enabled())
}
