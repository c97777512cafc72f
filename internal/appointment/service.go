package appointment

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

const (
	EventAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventAppointmentStarted   = "APPOINTMENT_STARTED"
	EventAppointmentUndone    = "APPOINTMENT_UNDONE"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrDoctorConflict          = errors.New("doctor already has an appointment within the conflict window")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidAppointment      = errors.New("invalid appointment")
	ErrQueueEmpty              = errors.New("processing queue is empty")
	ErrNothingToUndo           = errors.New("nothing to undo")
)

// IsNotFound reports an unknown appointment, patient or doctor.
func IsNotFound(err error) bool {
	return errors.IsAny(err, ErrAppointmentNotFound, ErrPatientNotFound, ErrDoctorNotFound)
}

// IsConflict reports a booking collision or a refused transition.
func IsConflict(err error) bool {
	return errors.IsAny(err, ErrDoctorConflict, ErrInvalidStatusTransition)
}

// IsEmpty reports that the queue or the undo history had nothing to act on.
func IsEmpty(err error) bool {
	return errors.IsAny(err, ErrQueueEmpty, ErrNothingToUndo)
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service is the scheduling engine. Store, queue and undo history form one
// unit behind mu: every mutation either commits to all three or to none.
type Service struct {
	mu        sync.RWMutex
	store     *Store
	conflicts *ConflictDetector
	queue     *Queue
	undo      *UndoStack
	revision  uint64
	pending   []EventLog

	dir    Directory
	events EventPublisher
	clock  clock.Clock
	loc    *time.Location
	log    zerolog.Logger
}

func NewService(dir Directory, events EventPublisher, cfg config.Config, opts ...Option) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	store := NewStore()
	s := &Service{
		store:     store,
		conflicts: NewConflictDetector(store, cfg.ConflictWindow),
		queue:     NewQueue(),
		undo:      NewUndoStack(cfg.UndoLimit),
		dir:       dir,
		events:    events,
		clock:     clock.NewRealClock(),
		loc:       cfg.Location(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule books a new appointment. Patient and doctor are resolved first,
// then the conflict check and the insert run in a single critical section.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (Appointment, error) {
	reason := strings.TrimSpace(in.Reason)
	switch {
	case in.PatientID == uuid.Nil:
		return Appointment{}, errors.Wrap(ErrInvalidAppointment, "patient id is required")
	case in.DoctorID == uuid.Nil:
		return Appointment{}, errors.Wrap(ErrInvalidAppointment, "doctor id is required")
	case in.DateTime.IsZero():
		return Appointment{}, errors.Wrap(ErrInvalidAppointment, "date and time are required")
	case reason == "":
		return Appointment{}, errors.Wrap(ErrInvalidAppointment, "reason is required")
	}

	patient, err := s.dir.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return Appointment{}, err
		}
		return Appointment{}, errors.Wrap(err, "load patient")
	}

	doctor, err := s.dir.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return Appointment{}, err
		}
		return Appointment{}, errors.Wrap(err, "load doctor")
	}

	var specialization string
	if doctor.Specialization != nil {
		specialization = *doctor.Specialization
	}

	var created Appointment
	err = s.mutate(ctx, func() error {
		if blocking, found := s.conflicts.FirstConflict(doctor.ID, in.DateTime, 0); found {
			return errors.Wrapf(ErrDoctorConflict, "appointment %d at %s",
				blocking.ID, blocking.DateTime.In(s.loc).Format(time.RFC3339))
		}

		appt := Appointment{
			PatientID:            patient.ID,
			PatientName:          patient.Name,
			DoctorID:             doctor.ID,
			DoctorName:           doctor.Name,
			DoctorSpecialization: specialization,
			DateTime:             in.DateTime,
			Status:               StatusScheduled,
			Reason:               reason,
			CreatedAt:            s.clock.Now(),
		}
		appt.ID = s.store.Insert(appt)
		s.queue.Enqueue(appt.ID)
		s.undo.Push(UndoRecord{Kind: UndoAdd, AppointmentID: appt.ID})

		s.stage(ctx, appt.ID, EventAppointmentScheduled, map[string]any{
			"patient_id": appt.PatientID.String(),
			"doctor_id":  appt.DoctorID.String(),
			"date_time":  appt.DateTime,
		})
		created = appt
		return nil
	})
	if err != nil {
		s.logger(ctx).Debug().Err(err).
			Str("doctor_id", in.DoctorID.String()).
			Time("date_time", in.DateTime).
			Msg("schedule rejected")
		return Appointment{}, err
	}

	return created, nil
}

// Update changes the time, reason or notes of an appointment. A new time for
// an active appointment is checked against the doctor's other bookings with
// the appointment itself excluded, so moving it within its own window works.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Appointment, error) {
	if in.empty() {
		return Appointment{}, errors.Wrap(ErrInvalidAppointment, "nothing to update")
	}

	return s.transition(ctx, id, UndoUpdate, EventAppointmentUpdated, func(a *Appointment) error {
		if in.Reason != nil {
			reason := strings.TrimSpace(*in.Reason)
			if reason == "" {
				return errors.Wrap(ErrInvalidAppointment, "reason is required")
			}
			a.Reason = reason
		}
		if in.DateTime != nil {
			if in.DateTime.IsZero() {
				return errors.Wrap(ErrInvalidAppointment, "date and time are required")
			}
			if a.IsActive() {
				if blocking, found := s.conflicts.FirstConflict(a.DoctorID, *in.DateTime, a.ID); found {
					return errors.Wrapf(ErrDoctorConflict, "appointment %d at %s",
						blocking.ID, blocking.DateTime.In(s.loc).Format(time.RFC3339))
				}
			}
			a.DateTime = *in.DateTime
		}
		if in.Notes != nil {
			a.Notes = *in.Notes
		}
		return nil
	})
}

// Confirm moves a scheduled appointment to confirmed. It stays queued.
func (s *Service) Confirm(ctx context.Context, id int64) (Appointment, error) {
	return s.transition(ctx, id, UndoConfirm, EventAppointmentConfirmed, func(a *Appointment) error {
		if err := canConfirm(a.Status); err != nil {
			return err
		}
		a.Status = StatusConfirmed
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, id int64) (Appointment, error) {
	return s.transition(ctx, id, UndoCancel, EventAppointmentCancelled, func(a *Appointment) error {
		a.Status = StatusCancelled
		return nil
	})
}

// Complete marks the appointment completed, replacing notes when given.
func (s *Service) Complete(ctx context.Context, id int64, notes *string) (Appointment, error) {
	return s.transition(ctx, id, UndoComplete, EventAppointmentCompleted, func(a *Appointment) error {
		a.Status = StatusCompleted
		if notes != nil {
			a.Notes = *notes
		}
		return nil
	})
}

func (s *Service) MarkNoShow(ctx context.Context, id int64) (Appointment, error) {
	return s.transition(ctx, id, UndoNoShow, EventAppointmentNoShow, func(a *Appointment) error {
		a.Status = StatusNoShow
		return nil
	})
}

// ProcessNext takes the head of the queue and starts it. On an empty queue
// nothing changes and ErrQueueEmpty is returned.
func (s *Service) ProcessNext(ctx context.Context) (Appointment, error) {
	var started Appointment
	err := s.mutate(ctx, func() error {
		for {
			id, ok := s.queue.Peek()
			if !ok {
				return ErrQueueEmpty
			}

			a, found := s.store.Get(id)
			if !found || !a.IsActive() {
				// never expected: the queue only ever holds active ids
				s.queue.Dequeue()
				s.logger(ctx).Warn().Int64("appointment_id", id).Msg("dropped stale queue entry")
				continue
			}

			before := snapshotOf(a)
			a.Status = StatusInProgress
			s.store.Put(a)
			s.queue.Dequeue()
			s.undo.Push(UndoRecord{Kind: UndoProcess, AppointmentID: id, Before: &before, Behind: s.queue.IDs()})

			s.stage(ctx, id, EventAppointmentStarted, map[string]any{
				"from": before.Status,
				"to":   a.Status,
			})
			started = a
			return nil
		}
	})
	if err != nil {
		return Appointment{}, err
	}

	return started, nil
}

// UndoLast reverts the most recent mutation and returns the record it
// consumed. Undo does not record itself, so there is no redo. An
// appointment put back into an active status rejoins the queue ahead of the
// ids that were behind it, or at the tail if none of them is left.
func (s *Service) UndoLast(ctx context.Context) (UndoRecord, error) {
	var rec UndoRecord
	err := s.mutate(ctx, func() error {
		r, ok := s.undo.Pop()
		if !ok {
			return ErrNothingToUndo
		}
		rec = r
		s.stage(ctx, r.AppointmentID, EventAppointmentUndone, map[string]any{
			"kind": r.Kind,
		})

		if r.Kind == UndoAdd {
			s.store.Remove(r.AppointmentID)
			s.queue.Remove(r.AppointmentID)
			return nil
		}

		a, found := s.store.Get(r.AppointmentID)
		if !found {
			return errors.Wrapf(ErrAppointmentNotFound, "undo %s of appointment %d", r.Kind, r.AppointmentID)
		}
		if r.Before == nil {
			return errors.AssertionFailedf("undo %s of appointment %d has no snapshot", r.Kind, r.AppointmentID)
		}

		a = r.Before.applyTo(a)
		s.store.Put(a)
		if a.IsActive() {
			s.queue.InsertBefore(a.ID, r.Behind)
		} else {
			s.queue.Remove(a.ID)
		}
		return nil
	})
	if err != nil {
		return UndoRecord{}, err
	}

	return rec, nil
}

// Delete removes an appointment outright. It cannot be undone, and any undo
// records that refer to it are discarded with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.mutate(ctx, func() error {
		if !s.store.Remove(id) {
			return errors.Wrapf(ErrAppointmentNotFound, "appointment %d", id)
		}
		s.queue.Remove(id)
		purged := s.undo.purge(id)

		s.stage(ctx, id, EventAppointmentDeleted, map[string]any{
			"purged_undo_records": purged,
		})
		return nil
	})
}

// Export copies the persistent part of the engine: appointments ordered by
// id, the queue head first, and the next id.
func (s *Service) Export() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.store.All()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return State{
		NextID:       s.store.NextID(),
		Appointments: items,
		Queue:        s.queue.IDs(),
	}
}

// Restore replaces the engine contents with st and clears the undo history.
// st must satisfy the engine's own invariants: the queue holds exactly the
// active appointments, each once, and no doctor has two active appointments
// closer than the conflict window. Anything else is rejected whole and the
// engine is left as it was.
func (s *Service) Restore(st State) error {
	byID := make(map[int64]Appointment, len(st.Appointments))
	for _, a := range st.Appointments {
		if a.ID <= 0 {
			return errors.Wrapf(ErrInvalidAppointment, "restore: bad id %d", a.ID)
		}
		if _, dup := byID[a.ID]; dup {
			return errors.Wrapf(ErrInvalidAppointment, "restore: duplicate id %d", a.ID)
		}
		if !a.Status.Valid() {
			return errors.Wrapf(ErrInvalidAppointment, "restore: appointment %d has status %q", a.ID, a.Status)
		}
		byID[a.ID] = a
	}

	seen := make(map[int64]struct{}, len(st.Queue))
	for _, id := range st.Queue {
		a, ok := byID[id]
		if !ok {
			return errors.Wrapf(ErrAppointmentNotFound, "restore: queued appointment %d", id)
		}
		if !a.IsActive() {
			return errors.Wrapf(ErrInvalidAppointment, "restore: queued appointment %d is %s", id, a.Status)
		}
		if _, dup := seen[id]; dup {
			return errors.Wrapf(ErrInvalidAppointment, "restore: appointment %d queued twice", id)
		}
		seen[id] = struct{}{}
	}

	byDoctor := make(map[uuid.UUID][]Appointment)
	for _, a := range st.Appointments {
		if !a.IsActive() {
			continue
		}
		if _, queued := seen[a.ID]; !queued {
			return errors.Wrapf(ErrInvalidAppointment, "restore: active appointment %d is not queued", a.ID)
		}
		byDoctor[a.DoctorID] = append(byDoctor[a.DoctorID], a)
	}

	window := s.conflicts.Window()
	for doctorID, appts := range byDoctor {
		sortByTime(appts)
		for i := 1; i < len(appts); i++ {
			prev, cur := appts[i-1], appts[i]
			if cur.DateTime.Sub(prev.DateTime) < window {
				return errors.Wrapf(ErrInvalidAppointment,
					"restore: appointments %d and %d of doctor %s are closer than %s",
					prev.ID, cur.ID, doctorID, window)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.load(st.NextID, st.Appointments)
	s.queue.reset()
	for _, id := range st.Queue {
		s.queue.Enqueue(id)
	}
	s.undo.reset()
	s.revision = 0

	return nil
}

// Revision counts committed mutations since construction or the last
// Restore.
func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Service) ConflictWindow() time.Duration {
	return s.conflicts.Window()
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// transition runs the shared snapshot, apply, store, queue, undo sequence
// for a single appointment. apply must not touch anything but a.
func (s *Service) transition(
	ctx context.Context,
	id int64,
	kind UndoKind,
	eventType string,
	apply func(a *Appointment) error,
) (Appointment, error) {
	var updated Appointment
	err := s.mutate(ctx, func() error {
		a, ok := s.store.Get(id)
		if !ok {
			return errors.Wrapf(ErrAppointmentNotFound, "appointment %d", id)
		}

		before := snapshotOf(a)
		behind, _ := s.queue.Behind(id)
		if err := apply(&a); err != nil {
			return err
		}

		s.store.Put(a)
		if !a.IsActive() {
			s.queue.Remove(id)
		}
		s.undo.Push(UndoRecord{Kind: kind, AppointmentID: id, Before: &before, Behind: behind})

		s.stage(ctx, id, eventType, map[string]any{
			"from": before.Status,
			"to":   a.Status,
		})
		updated = a
		return nil
	})
	if err != nil {
		s.logger(ctx).Debug().Err(err).
			Int64("appointment_id", id).
			Str("op", string(kind)).
			Msg("transition rejected")
		return Appointment{}, err
	}

	return updated, nil
}

// mutate runs fn under the write lock. Events staged by fn are stamped and
// published before the lock is released, so they leave in commit order. A
// failed fn publishes nothing.
func (s *Service) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = s.pending[:0]
	if err := fn(); err != nil {
		s.pending = s.pending[:0]
		return err
	}
	s.revision++

	now := s.clock.Now()
	for i := range s.pending {
		ev := s.pending[i]
		ev.CreatedAt = now
		s.events.Publish(ev)

		s.logger(ctx).Info().
			Str("event_type", ev.EventType).
			Int64("appointment_id", *ev.AppointmentID).
			Msg("appointment event")
		s.pending[i] = EventLog{}
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, &s.log)
}

// stage queues an event for the mutation in progress. Only called from
// inside mutate.
func (s *Service) stage(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	s.pending = append(s.pending, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
	})
}
