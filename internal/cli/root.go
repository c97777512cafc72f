// Package cli implements clinicctl, a console front end for the api-server.
package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Format  string // "json" | "text"
	Timeout time.Duration

	// httpClient is swapped in tests.
	httpClient *http.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) client() *client.Client {
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return client.New(o.Server, hc)
}

// NewRootCommand creates the root command for clinicctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinicctl",
		Short: "Clinic appointment console",
		Long:  "Schedule, move through the queue and report on clinic appointments via the api-server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("CLINIC_SERVER", "http://localhost:8080"), "api-server base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(newScheduleCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newTransitionCommand(opts, "confirm", "Confirm a scheduled appointment"))
	cmd.AddCommand(newTransitionCommand(opts, "cancel", "Cancel an appointment"))
	cmd.AddCommand(newCompleteCommand(opts))
	cmd.AddCommand(newTransitionCommand(opts, "no-show", "Mark an appointment as a no-show"))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newNextCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newUndoCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
