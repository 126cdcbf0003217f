// Package query implements commands reading the DuckDB sink.
package query

import (
	"github.com/spf13/cobra"
)

// NewQueryCmd creates the 'query' command.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored measurements and profiles",
		Long: `Query the sessions stored in the DuckDB sink.

Commands:
  measurements - Durations of unsampled sessions
  profiles     - Sampled sessions with their custom timers

Examples:
  coral-collect query measurements --limit 20
  coral-collect query profiles -o json`,
	}

	cmd.AddCommand(NewMeasurementsCmd())
	cmd.AddCommand(NewProfilesCmd())

	return cmd
}
