package cli

import (
	"github.com/spf13/cobra"
)

func newNextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "next",
		Short:         "Start the appointment at the head of the queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			appt, err := opts.client().ProcessNext(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}
}

func newQueueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "queue",
		Short:         "Show the waiting queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client().Queue(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).queue(q)
		},
	}
}

func newUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "undo",
		Short:         "Revert the most recent change",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := opts.client().Undo(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).undo(u)
		},
	}
}
