package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/export"
)

func newReportCommand(opts *RootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:           "report",
		Short:         "Count one day's appointments by status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.client().DailyReport(cmd.Context(), date)
			if err != nil {
				return err
			}
			return opts.printer(cmd).report(r)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to report on (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var (
		filters listFilters
		as      string
		out     string
	)

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Download appointments as CSV or JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(as)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			return opts.client().Export(cmd.Context(), string(format), filters.values(), w)
		},
	}

	filters.bind(cmd)
	cmd.Flags().StringVar(&as, "as", "csv", "file format (csv|json)")
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file, - for stdout")

	return cmd
}
