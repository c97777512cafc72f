package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type ScheduleRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	DateTime  string `json:"date_time"`
	Reason    string `json:"reason"`
}

// UpdateRequest leaves absent fields untouched.
type UpdateRequest struct {
	DateTime *string `json:"date_time,omitempty"`
	Reason   *string `json:"reason,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type CompleteRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID                   int64     `json:"id"`
	PatientID            uuid.UUID `json:"patient_id"`
	PatientName          string    `json:"patient_name"`
	DoctorID             uuid.UUID `json:"doctor_id"`
	DoctorName           string    `json:"doctor_name"`
	DoctorSpecialization string    `json:"doctor_specialization,omitempty"`
	DateTime             time.Time `json:"date_time"`
	Status               string    `json:"status"`
	Reason               string    `json:"reason"`
	Notes                string    `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
}

type QueueResponse struct {
	IDs       []int64 `json:"ids"`
	Size      int     `json:"size"`
	UndoDepth int     `json:"undo_depth"`
}

type UndoResponse struct {
	Kind          string `json:"kind"`
	AppointmentID int64  `json:"appointment_id"`
}

type DailyReportResponse struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toResponse(a appointment.Appointment, loc *time.Location) AppointmentResponse {
	return AppointmentResponse{
		ID:                   a.ID,
		PatientID:            a.PatientID,
		PatientName:          a.PatientName,
		DoctorID:             a.DoctorID,
		DoctorName:           a.DoctorName,
		DoctorSpecialization: a.DoctorSpecialization,
		DateTime:             a.DateTime.In(loc),
		Status:               string(a.Status),
		Reason:               a.Reason,
		Notes:                a.Notes,
		CreatedAt:            a.CreatedAt.In(loc),
	}
}

func toListResponse(appts []appointment.Appointment, loc *time.Location) AppointmentListResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toResponse(a, loc))
	}
	return AppointmentListResponse{Appointments: out, Count: len(out)}
}
