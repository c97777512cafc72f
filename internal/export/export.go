// Package export renders appointments as CSV or JSON for reporting and
// hand-off to other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Header is the CSV column order.
var Header = []string{
	"id",
	"patient_id",
	"patient_name",
	"doctor_id",
	"doctor_name",
	"doctor_specialization",
	"date_time",
	"status",
	"reason",
	"notes",
	"created_at",
}

// Record is the exported shape of an appointment.
type Record struct {
	ID                   int64  `json:"id"`
	PatientID            string `json:"patient_id"`
	PatientName          string `json:"patient_name"`
	DoctorID             string `json:"doctor_id"`
	DoctorName           string `json:"doctor_name"`
	DoctorSpecialization string `json:"doctor_specialization,omitempty"`
	DateTime             string `json:"date_time"`
	Status               string `json:"status"`
	Reason               string `json:"reason"`
	Notes                string `json:"notes,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// NewRecord formats times as RFC 3339 in loc.
func NewRecord(a appointment.Appointment, loc *time.Location) Record {
	if loc == nil {
		loc = time.UTC
	}
	return Record{
		ID:                   a.ID,
		PatientID:            a.PatientID.String(),
		PatientName:          a.PatientName,
		DoctorID:             a.DoctorID.String(),
		DoctorName:           a.DoctorName,
		DoctorSpecialization: a.DoctorSpecialization,
		DateTime:             a.DateTime.In(loc).Format(time.RFC3339),
		Status:               string(a.Status),
		Reason:               a.Reason,
		Notes:                a.Notes,
		CreatedAt:            a.CreatedAt.In(loc).Format(time.RFC3339),
	}
}

func (r Record) row() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.PatientID,
		r.PatientName,
		r.DoctorID,
		r.DoctorName,
		r.DoctorSpecialization,
		r.DateTime,
		r.Status,
		r.Reason,
		r.Notes,
		r.CreatedAt,
	}
}

func Write(w io.Writer, f Format, appts []appointment.Appointment, loc *time.Location) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, appts, loc)
	case FormatJSON:
		return WriteJSON(w, appts, loc)
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", string(f))
	}
}

func WriteCSV(w io.Writer, appts []appointment.Appointment, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, a := range appts {
		if err := cw.Write(NewRecord(a, loc).row()); err != nil {
			return errors.Wrapf(err, "write csv row %d", a.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteJSON writes an indented array; an empty input still yields [].
func WriteJSON(w io.Writer, appts []appointment.Appointment, loc *time.Location) error {
	records := make([]Record, 0, len(appts))
	for _, a := range appts {
		records = append(records, NewRecord(a, loc))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}
