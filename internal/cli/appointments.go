package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/api"
)

func newScheduleCommand(opts *RootOptions) *cobra.Command {
	var req api.ScheduleRequest

	cmd := &cobra.Command{
		Use:           "schedule",
		Short:         "Book an appointment",
		Example:       "  clinicctl schedule --patient <uuid> --doctor <uuid> --at 2026-03-02T09:00 --reason checkup",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			appt, err := opts.client().Schedule(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}

	cmd.Flags().StringVar(&req.PatientID, "patient", "", "patient id (required)")
	cmd.Flags().StringVar(&req.DoctorID, "doctor", "", "doctor id (required)")
	cmd.Flags().StringVar(&req.DateTime, "at", "", "date and time, RFC3339 or YYYY-MM-DDTHH:MM in clinic time (required)")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "reason for the visit")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func newUpdateCommand(opts *RootOptions) *cobra.Command {
	var at, reason, notes string

	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         "Reschedule an appointment or edit its reason and notes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var req api.UpdateRequest
			flags := cmd.Flags()
			if flags.Changed("at") {
				req.DateTime = &at
			}
			if flags.Changed("reason") {
				req.Reason = &reason
			}
			if flags.Changed("notes") {
				req.Notes = &notes
			}
			if req.DateTime == nil && req.Reason == nil && req.Notes == nil {
				return fmt.Errorf("nothing to update: pass --at, --reason or --notes")
			}

			appt, err := opts.client().Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "new date and time")
	cmd.Flags().StringVar(&reason, "reason", "", "new reason")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")

	return cmd
}

// newTransitionCommand builds confirm, cancel and no-show, which take only
// an id.
func newTransitionCommand(opts *RootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c := opts.client()
			var appt api.AppointmentResponse
			switch name {
			case "confirm":
				appt, err = c.Confirm(cmd.Context(), id)
			case "cancel":
				appt, err = c.Cancel(cmd.Context(), id)
			case "no-show":
				appt, err = c.NoShow(cmd.Context(), id)
			default:
				return fmt.Errorf("unknown transition %q", name)
			}
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}
}

func newCompleteCommand(opts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:           "complete <id>",
		Short:         "Mark an appointment as completed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var n *string
			if cmd.Flags().Changed("notes") {
				n = &notes
			}

			appt, err := opts.client().Complete(cmd.Context(), id, n)
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "visit notes")

	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Remove an appointment permanently",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := opts.client().Delete(cmd.Context(), id); err != nil {
				return err
			}
			return opts.printer(cmd).message("deleted appointment %d", id)
		},
	}
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Show one appointment",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			appt, err := opts.client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointment(appt)
		},
	}
}

// listFilters are shared by list and export.
type listFilters struct {
	status, patient, doctor, date, from, to string
}

func (f *listFilters) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", "", "only this status")
	cmd.Flags().StringVar(&f.patient, "patient", "", "only this patient id")
	cmd.Flags().StringVar(&f.doctor, "doctor", "", "only this doctor id")
	cmd.Flags().StringVar(&f.date, "date", "", "only this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.from, "from", "", "range start day, used with --to")
	cmd.Flags().StringVar(&f.to, "to", "", "range end day, inclusive")
}

func (f listFilters) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("status", f.status)
	set("patient_id", f.patient)
	set("doctor_id", f.doctor)
	set("date", f.date)
	set("from", f.from)
	set("to", f.to)
	return q
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var filters listFilters

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List appointments in date order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().List(cmd.Context(), filters.values())
			if err != nil {
				return err
			}
			return opts.printer(cmd).appointments(resp.Appointments)
		},
	}
	filters.bind(cmd)

	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid appointment id %q", raw)
	}
	return id, nil
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.Format, w: cmd.OutOrStdout()}
}
