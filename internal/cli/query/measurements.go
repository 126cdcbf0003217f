package query

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/sink/duckdbsink"
)

type measurementRow struct {
	CapturedAt string `header:"CAPTURED" json:"captured_at"`
	Operation  string `header:"OPERATION" json:"operation"`
	Type       string `header:"TYPE" json:"operation_type"`
	DurationMS int64  `header:"DURATION_MS" json:"duration_ms"`
	ID         string `json:"id"`
}

func measurementRows(items []*duckdbsink.Measurement) []measurementRow {
	rows := make([]measurementRow, len(items))
	for i, m := range items {
		rows[i] = measurementRow{
			CapturedAt: m.CapturedAt.UTC().Format(time.RFC3339),
			Operation:  m.OperationName,
			Type:       collector.OperationType(m.OperationType).String(),
			DurationMS: m.DurationMillis,
			ID:         m.ID,
		}
	}
	return rows
}

// NewMeasurementsCmd creates the 'query measurements' command.
func NewMeasurementsCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "measurements",
		Short: "List stored measurements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.SupportedFormats); err != nil {
				return err
			}

			sink, release, err := openSink(cmd)
			if err != nil {
				return err
			}
			defer release()

			items, err := sink.ListMeasurements(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return write(cmd, format, measurementRows(items))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows (0 for all)")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.SupportedFormats)

	return cmd
}
