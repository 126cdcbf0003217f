package query

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/pkg/sink/duckdbsink"
)

func openSink(cmd *cobra.Command) (*duckdbsink.Sink, func(), error) {
	env, err := helpers.LoadEnv(cmd)
	if err != nil {
		return nil, nil, err
	}
	return env.OpenSink()
}

func write(cmd *cobra.Command, format string, data any) error {
	f, err := helpers.NewFormatter(helpers.OutputFormat(format))
	if err != nil {
		return err
	}
	return f.Format(data, cmd.OutOrStdout())
}
