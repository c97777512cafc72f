package appointment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Directory resolves the patient and doctor registries the engine books
// against. The engine never writes to them.
type Directory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// StateRepository persists engine state outside the process.
type StateRepository interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, st State) error
}

// EventSink stores the audit trail of committed mutations.
type EventSink interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// EventPublisher hands events off without blocking the caller.
type EventPublisher interface {
	Publish(ev EventLog)
}

type nopPublisher struct{}

func (nopPublisher) Publish(EventLog) {}
