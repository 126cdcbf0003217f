// Package cli wires the coral-collect commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/internal/cli/query"
	"github.com/coral-mesh/coral-collect/internal/cli/run"
	"github.com/coral-mesh/coral-collect/internal/cli/serve"
	"github.com/coral-mesh/coral-collect/pkg/version"
)

// NewRootCmd creates the coral-collect command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coral-collect",
		Short: "Per-request profiling collector",
		Long: `Record every web request or worker job as one collector session.

A sampled session captures a CPU profile together with its custom timers.
Every other session stores its wall-clock duration. Sessions ending in a
fatal error or a 5xx status are discarded.

Configuration is read from --config or $CORAL_COLLECT_CONFIG and can be
overridden with CORAL_COLLECT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	helpers.AddGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(run.NewRunCmd())
	rootCmd.AddCommand(query.NewQueryCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("coral-collect version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
