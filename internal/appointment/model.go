package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Appointment is held by value everywhere. The Store owns the canonical copy;
// the queue and the undo stack only refer to it by ID.
type Appointment struct {
	ID                   int64
	PatientID            uuid.UUID
	PatientName          string
	DoctorID             uuid.UUID
	DoctorName           string
	DoctorSpecialization string
	DateTime             time.Time
	Status               Status
	Reason               string
	Notes                string
	CreatedAt            time.Time
}

// IsActive reports whether the appointment holds its doctor's time and is
// waiting for service.
func (a Appointment) IsActive() bool {
	return a.Status.IsActive()
}

// Snapshot holds the mutable fields of an appointment taken before a change.
type Snapshot struct {
	DateTime time.Time
	Reason   string
	Status   Status
	Notes    string
}

func snapshotOf(a Appointment) Snapshot {
	return Snapshot{
		DateTime: a.DateTime,
		Reason:   a.Reason,
		Status:   a.Status,
		Notes:    a.Notes,
	}
}

func (s Snapshot) applyTo(a Appointment) Appointment {
	a.DateTime = s.DateTime
	a.Reason = s.Reason
	a.Status = s.Status
	a.Notes = s.Notes
	return a
}

// State is everything a persistence layer needs to rebuild the engine.
// The undo history is session scoped and is not part of it.
type State struct {
	NextID       int64
	Appointments []Appointment
	Queue        []int64
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

type ScheduleInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	DateTime  time.Time
	Reason    string
}

// UpdateInput carries optional field changes; nil fields are left untouched.
type UpdateInput struct {
	DateTime *time.Time
	Reason   *string
	Notes    *string
}

func (in UpdateInput) empty() bool {
	return in.DateTime == nil && in.Reason == nil && in.Notes == nil
}
