package query

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/pkg/sink/duckdbsink"
)

type profileRow struct {
	CapturedAt   string     `header:"CAPTURED" json:"captured_at"`
	Operation    string     `header:"OPERATION" json:"operation"`
	DatasetBytes int        `header:"BYTES" json:"dataset_bytes"`
	Digest       string     `header:"DIGEST" json:"dataset_digest"`
	TimerCount   int64      `header:"TIMERS" json:"timer_count"`
	ID           string     `json:"id"`
	Timers       []timerRow `json:"timers"`
}

type timerRow struct {
	Group          string `json:"group"`
	Label          string `json:"label"`
	DurationMicros int64  `json:"duration_us"`
	Closed         bool   `json:"closed"`
}

func profileRows(items []*duckdbsink.Profile) []profileRow {
	rows := make([]profileRow, len(items))
	for i, p := range items {
		timers := make([]timerRow, len(p.Timers))
		for j, t := range p.Timers {
			timers[j] = timerRow{
				Group:          t.Group,
				Label:          t.Label,
				DurationMicros: t.DurationMicros,
				Closed:         t.Closed,
			}
		}
		rows[i] = profileRow{
			CapturedAt:   p.CapturedAt.UTC().Format(time.RFC3339),
			Operation:    p.OperationName,
			DatasetBytes: len(p.Dataset),
			Digest:       p.DatasetDigest,
			TimerCount:   p.TimerCount,
			ID:           p.ID,
			Timers:       timers,
		}
	}
	return rows
}

// NewProfilesCmd creates the 'query profiles' command.
func NewProfilesCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List stored profiles, newest first",
		Long: `List stored profiles, newest first.

The table and CSV formats show one row per profile. Use -o json to include
the custom timers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.SupportedFormats); err != nil {
				return err
			}

			sink, release, err := openSink(cmd)
			if err != nil {
				return err
			}
			defer release()

			items, err := sink.ListProfiles(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return write(cmd, format, profileRows(items))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of rows (0 for all)")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.SupportedFormats)

	return cmd
}
