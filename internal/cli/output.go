package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/hackgods/clinic-scheduling/internal/api"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printer renders API payloads either as JSON or as aligned text.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) appointment(a api.AppointmentResponse) error {
	if p.format == "json" {
		return p.json(a)
	}
	return p.appointments([]api.AppointmentResponse{a})
}

func (p printer) appointments(list []api.AppointmentResponse) error {
	if p.format == "json" {
		return p.json(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.w, "no appointments")
		return err
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tPATIENT\tDOCTOR\tREASON")
	for _, a := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.DateTime.Format("2006-01-02 15:04"), a.Status, a.PatientName, a.DoctorName, a.Reason)
	}
	return tw.Flush()
}

func (p printer) queue(q api.QueueResponse) error {
	if p.format == "json" {
		return p.json(q)
	}
	_, err := fmt.Fprintf(p.w, "queue (%d): %v\nundo depth: %d\n", q.Size, q.IDs, q.UndoDepth)
	return err
}

func (p printer) undo(u api.UndoResponse) error {
	if p.format == "json" {
		return p.json(u)
	}
	_, err := fmt.Fprintf(p.w, "undid %s of appointment %d\n", u.Kind, u.AppointmentID)
	return err
}

func (p printer) report(r api.DailyReportResponse) error {
	if p.format == "json" {
		return p.json(r)
	}

	statuses := make([]string, 0, len(r.Counts))
	for st := range r.Counts {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "date\t%s\n", r.Date)
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%d\n", st, r.Counts[st])
	}
	fmt.Fprintf(tw, "total\t%d\n", r.Total)
	return tw.Flush()
}

func (p printer) message(format string, args ...any) error {
	if p.format == "json" {
		return p.json(map[string]string{"status": "ok", "message": fmt.Sprintf(format, args...)})
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}
